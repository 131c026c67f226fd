// Package quash post-processes trajectories so that a species group driven
// below a biologically meaningless threshold stays extinguished instead of
// numerically resurrecting from the fractional remainder continuous ODE
// dynamics leave behind.
package quash

import (
	"fmt"
)

// DefaultThreshold is the population below which a count has no biological
// interpretation.
const DefaultThreshold = 1.0

// Group is a set of species indices representing sub-states of one
// biological entity; extinction is judged over the whole group.
type Group struct {
	Name    string
	Members []int
}

// Integrate produces one trajectory row per timepoint starting from x0.
// The model and parameters are already bound; quashing re-invokes it from
// each truncation boundary.
type Integrate func(x0, timepoints []float64) ([][]float64, error)

// Options tune a quashing run. A zero Threshold means [DefaultThreshold].
// Prefix, when non-empty, is a previously computed trajectory over a leading
// span of the timepoints; it is reused instead of re-integrating from the
// start, and any uncovered tail is integrated from its last row.
type Options struct {
	Threshold float64
	Prefix    [][]float64
}

// Run integrates over timepoints and recursively enforces extinction: the
// group with the earliest critical point (first timepoint where every member
// is below threshold after the group has ever reached it) is zeroed at that
// boundary, integration restarts from there with the group retired, and the
// segments are concatenated. Groups are retired permanently after their
// first crossing. The returned trajectory has exactly one row per timepoint,
// the same shape as a direct integration.
func Run(integ Integrate, timepoints []float64, groups []Group, x0 []float64, opt Options) ([][]float64, error) {
	th := opt.Threshold
	if th == 0 {
		th = DefaultThreshold
	}

	traj, err := seed(integ, timepoints, x0, opt.Prefix)
	if err != nil {
		return nil, err
	}
	return run(integ, timepoints, groups, traj, th)
}

// seed produces the full first-pass trajectory, reusing any prefix.
func seed(integ Integrate, timepoints []float64, x0 []float64, prefix [][]float64) ([][]float64, error) {
	switch {
	case len(prefix) == 0:
		return integ(x0, timepoints)
	case len(prefix) > len(timepoints):
		return nil, fmt.Errorf("quash: prefix has %d rows for %d timepoints", len(prefix), len(timepoints))
	case len(prefix) == len(timepoints):
		return prefix, nil
	}

	tail, err := integ(prefix[len(prefix)-1], timepoints[len(prefix)-1:])
	if err != nil {
		return nil, err
	}
	out := make([][]float64, 0, len(timepoints))
	out = append(out, prefix...)
	out = append(out, tail[1:]...)
	return out, nil
}

func run(integ Integrate, timepoints []float64, groups []Group, traj [][]float64, th float64) ([][]float64, error) {
	best := -1
	bestGroup := -1
	for gi, g := range groups {
		idx := critIndex(traj, g, th)
		if idx >= 0 && (best == -1 || idx < best) {
			best = idx
			bestGroup = gi
		}
	}
	if bestGroup == -1 {
		return traj, nil
	}

	boundary := append([]float64(nil), traj[best]...)
	for _, m := range groups[bestGroup].Members {
		boundary[m] = 0
	}

	head := make([][]float64, 0, len(timepoints))
	head = append(head, traj[:best]...)
	head = append(head, boundary)

	if best == len(timepoints)-1 {
		return head, nil
	}

	remaining := make([]Group, 0, len(groups)-1)
	remaining = append(remaining, groups[:bestGroup]...)
	remaining = append(remaining, groups[bestGroup+1:]...)

	restTps := timepoints[best:]
	tail, err := integ(boundary, restTps)
	if err != nil {
		return nil, err
	}
	tail, err = run(integ, restTps, remaining, tail, th)
	if err != nil {
		return nil, err
	}

	return append(head, tail[1:]...), nil
}

// critIndex returns the first row index at which every group member is below
// threshold after the group has previously had a member at or above it, or
// -1 when the group never both rises and falls.
func critIndex(traj [][]float64, g Group, th float64) int {
	rose := false
	for ti, row := range traj {
		any := false
		all := true
		for _, m := range g.Members {
			if row[m] >= th {
				any = true
				all = false
			}
		}
		if rose && all {
			return ti
		}
		if any {
			rose = true
		}
	}
	return -1
}
