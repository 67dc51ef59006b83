package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Standalone mock of the AI agent backend. Run it next to the bridge to
// exercise the agent client without a real STT/LLM/TTS stack:
//
//	go run test_agent_server.go
//
// and point agent.base_url at http://localhost:8085.

type transcriptResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type generateRequest struct {
	RequestID string   `json:"request_id"`
	Text      string   `json:"text"`
	History   []string `json:"history,omitempty"`
	Language  string   `json:"language,omitempty"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type synthesizeRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	Voice     string `json:"voice,omitempty"`
	Language  string `json:"language,omitempty"`
}

func speechToTextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	requestID := r.FormValue("request_id")
	language := r.FormValue("language")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio", http.StatusInternalServerError)
		return
	}

	log.Printf("speech-to-text: request_id=%s file=%s size=%d language=%s",
		requestID, header.Filename, len(audioData), language)

	resp := transcriptResponse{
		Text:       fmt.Sprintf("Mock transcript of %d bytes of audio", len(audioData)),
		Confidence: 0.92,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func generateResponseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	log.Printf("generate-response: request_id=%s text=%q history=%d",
		req.RequestID, req.Text, len(req.History))

	resp := generateResponse{
		Text: fmt.Sprintf("Mock reply to: %s", req.Text),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func textToSpeechHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	log.Printf("text-to-speech: request_id=%s text=%q voice=%s",
		req.RequestID, req.Text, req.Voice)

	// 100ms of 16kHz mono PCM16 silence
	audio := make([]byte, 3200)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(audio)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func main() {
	http.HandleFunc("/speech-to-text", speechToTextHandler)
	http.HandleFunc("/generate-response", generateResponseHandler)
	http.HandleFunc("/text-to-speech", textToSpeechHandler)
	http.HandleFunc("/health", healthHandler)

	addr := ":8085"
	log.Printf("Mock agent backend listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
