package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstMovement BookmarkType = "first_movement"
	BookmarkMovementSurge BookmarkType = "movement_surge"
	BookmarkPressureSpike BookmarkType = "pressure_spike"
	BookmarkFlowStrain    BookmarkType = "flow_strain"
	BookmarkSettled       BookmarkType = "settled"
)

// Bookmark marks a notable window of a run.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Iteration   int          `csv:"iteration" json:"iteration"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"iteration", b.Iteration,
		"description", b.Description,
	)
}

// BookmarkDetector watches window stats for notable moments.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	sawMovement  bool
	quietWindows int
	settled      bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkFirstMovement(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkMovementSurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkPressureSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkFlowStrain(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	if b := bd.checkSettled(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkFirstMovement(stats WindowStats) *Bookmark {
	if bd.sawMovement || stats.Moved == 0 {
		return nil
	}
	bd.sawMovement = true
	return &Bookmark{
		Type:        BookmarkFirstMovement,
		Iteration:   stats.WindowEnd,
		Description: fmt.Sprintf("First completed chains: %d in window ending %d", stats.Moved, stats.WindowEnd),
	}
}

func (bd *BookmarkDetector) checkMovementSurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}
	var total int
	for _, h := range history {
		total += h.Moved
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}
	if float64(stats.Moved) > avg*2 && stats.Moved >= 3 {
		return &Bookmark{
			Type:        BookmarkMovementSurge,
			Iteration:   stats.WindowEnd,
			Description: fmt.Sprintf("Moved %d chains, %.1fx average (%.1f)", stats.Moved, float64(stats.Moved)/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkPressureSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}
	var total float64
	for _, h := range history {
		total += h.PressureStd
	}
	avg := total / float64(len(history))
	if avg <= 0 || math.IsNaN(avg) {
		return nil
	}
	if stats.PressureStd > avg*3 {
		return &Bookmark{
			Type:        BookmarkPressureSpike,
			Iteration:   stats.WindowEnd,
			Description: fmt.Sprintf("Pressure spread %.3g is %.1fx average (%.3g)", stats.PressureStd, stats.PressureStd/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkFlowStrain(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}
	var total float64
	for _, h := range history {
		total += h.FlowRoundsMean
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}
	if float64(stats.FlowRoundsMax) > avg*2 && stats.FlowRoundsMax >= 10 {
		return &Bookmark{
			Type:        BookmarkFlowStrain,
			Iteration:   stats.WindowEnd,
			Description: fmt.Sprintf("Saturation needed %d rounds, average %.1f", stats.FlowRoundsMax, avg),
		}
	}
	return nil
}

// checkSettled fires once, after movement was seen and five consecutive
// windows started no chain.
func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	if !bd.sawMovement || bd.settled {
		return nil
	}
	if stats.Chains > 0 {
		bd.quietWindows = 0
		return nil
	}
	bd.quietWindows++
	if bd.quietWindows < 5 {
		return nil
	}
	bd.settled = true
	return &Bookmark{
		Type:        BookmarkSettled,
		Iteration:   stats.WindowEnd,
		Description: fmt.Sprintf("No chains for %d windows", bd.quietWindows),
	}
}
