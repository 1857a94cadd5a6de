// Package tradelog appends trades and decisions as JSON lines to daily files.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fusion-trader/internal/types"
)

type Entry struct {
	Time        string      `json:"time"`
	Trade       types.Trade `json:"trade"`
	Cash        string      `json:"cash"`
	PositionQty int64       `json:"position_qty"`
}

type DecisionEntry struct {
	Time       string            `json:"time"`
	Instrument string            `json:"instrument"`
	Decision   types.Signal      `json:"decision"`
	Confidence float64           `json:"confidence"`
	Strategy   string            `json:"strategy"`
	Reasoning  string            `json:"reasoning"`
	Sentiment  float64           `json:"sentiment"`
	Regime     types.Regime      `json:"regime"`
	Price      float64           `json:"price"`
	Degraded   types.Degradation `json:"degradation"`
	Extra      map[string]any    `json:"extra,omitempty"`
}

// Journal writes <dir>/<date>.txt for trades and <dir>/decisions/<date>.txt
// for decisions. Dates are taken in loc.
type Journal struct {
	mu  sync.Mutex
	dir string
	loc *time.Location
}

func New(dir string, loc *time.Location) *Journal {
	if dir == "" {
		dir = "logs"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Journal{dir: dir, loc: loc}
}

func (j *Journal) Dir() string { return j.dir }

// Append records a trade stamped with the trade's own time.
func (j *Journal) Append(e Entry) error {
	ts := e.Trade.Ts
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.In(j.loc)
	e.Time = ts.Format("2006-01-02 15:04:05")
	return j.write(filepath.Join(j.dir, ts.Format("2006-01-02")+".txt"), e)
}

func (j *Journal) AppendDecision(e DecisionEntry, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.In(j.loc)
	e.Time = at.Format("2006-01-02 15:04:05")
	return j.write(filepath.Join(j.dir, "decisions", at.Format("2006-01-02")+".txt"), e)
}

func (j *Journal) write(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files last modified more than retentionDays ago
// and removes the originals.
func (j *Journal) CompressOlder(retentionDays int, now time.Time) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	j.mu.Lock()
	defer j.mu.Unlock()
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed on an earlier pass
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
