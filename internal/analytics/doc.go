// Package analytics derives aggregate conversation metrics from meeting snapshots.
// It computes per-participant speaking percentages and participation scores,
// classifies speaking distribution, turn-taking pattern and participation balance,
// and produces deterministic recommendations from those classifications.
package analytics
