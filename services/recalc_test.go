package services

import (
	"fmt"
	"testing"

	"quest-tracking-system/models"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		completed int64
		want      int
	}{
		{"empty quest is always zero", 0, 0, 0},
		{"no completions", 4, 0, 0},
		{"one of four", 4, 1, 25},
		{"three of four", 4, 3, 75},
		{"all done", 4, 4, 100},
		{"truncates, never rounds", 3, 2, 66},
		{"one of three truncates", 3, 1, 33},
		{"one of seven", 7, 1, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeProgress(tt.total, tt.completed))
		})
	}
}

// progress == floor(100*k/N) must hold for every 0 <= k <= N
func TestComputeProgressExhaustive(t *testing.T) {
	for n := int64(1); n <= 20; n++ {
		for k := int64(0); k <= n; k++ {
			t.Run(fmt.Sprintf("k=%d n=%d", k, n), func(t *testing.T) {
				assert.Equal(t, int(k*100/n), ComputeProgress(n, k))
			})
		}
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  models.ProgressStatus
		progress int
		want     models.ProgressStatus
	}{
		{"not started stays with zero progress", models.StatusNotStarted, 0, models.StatusNotStarted},
		{"not started promotes on first progress", models.StatusNotStarted, 25, models.StatusInProgress},
		{"not started completes at 100", models.StatusNotStarted, 100, models.StatusCompleted},
		{"in progress holds below 100", models.StatusInProgress, 99, models.StatusInProgress},
		{"in progress completes at 100", models.StatusInProgress, 100, models.StatusCompleted},
		{"completed never regresses", models.StatusCompleted, 50, models.StatusCompleted},
		{"abandoned never auto-promotes", models.StatusAbandoned, 100, models.StatusAbandoned},
		{"expired never auto-promotes", models.StatusExpired, 100, models.StatusExpired},
		{"abandoned keeps mid progress", models.StatusAbandoned, 60, models.StatusAbandoned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStatus(tt.current, tt.progress))
		})
	}
}
