package render

import (
	"strings"
	"testing"
)

func TestTrajectoryCapsPlots(t *testing.T) {
	rows := [][]float64{
		{1, 2, 3, 4},
		{2, 3, 4, 5},
		{3, 4, 5, 6},
	}
	out := Trajectory([]string{"a", "b", "c", "d"}, rows, 40, 5, 2)

	if !strings.Contains(out, "a") || !strings.Contains(out, "b") {
		t.Error("expected captions for the first two species")
	}
	if !strings.Contains(out, "2 more species not shown") {
		t.Error("expected overflow notice")
	}
}

func TestTrajectoryEmpty(t *testing.T) {
	if out := Trajectory(nil, nil, 40, 5, 0); !strings.Contains(out, "empty") {
		t.Errorf("unexpected output for empty trajectory: %q", out)
	}
}

func TestSparklineWidth(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	line := Sparkline(values, 20)
	if n := len([]rune(line)); n != 20 {
		t.Errorf("expected 20 runes, got %d", n)
	}
}

func TestSparklineConstant(t *testing.T) {
	line := Sparkline([]float64{5, 5, 5, 5}, 4)
	runes := []rune(line)
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[0] {
			t.Errorf("constant series should render uniformly: %q", line)
		}
	}
}
