package edusiap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const fallbackSnapshotLimit = 512 << 20

// MaxSnapshotSize is the largest snapshot document ReadSnapshot accepts:
// a quarter of the physical memory, or 512MiB when that is unknown.
func MaxSnapshotSize() int64 {
	total := memory.TotalMemory()
	if total == 0 {
		return fallbackSnapshotLimit
	}
	return int64(total / 4)
}

// BackupFileName is the conventional name of an export taken at t.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("edusiap_backup_%s.json", t.Format("2006-01-02"))
}

// WriteSnapshot writes snap as an indented JSON document.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	out := make(map[string][]M, len(snap))
	for name, recs := range snap {
		if recs == nil {
			recs = []M{}
		}
		out[name] = recs
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errors.Wrap(err, "could not write snapshot")
	}

	return nil
}

// ReadSnapshot reads and validates a snapshot document.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	limit := MaxSnapshotSize()

	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "could not read snapshot")
	}

	if int64(len(b)) > limit {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "snapshot exceeds %d bytes", limit)
	}

	return ParseSnapshot(b)
}

// ParseSnapshot decodes a document of the form
// {"collection": [{...}, ...], ...}. Any other shape is ErrInvalidSnapshot.
func ParseSnapshot(b []byte) (Snapshot, error) {
	if err := validateSnapshotShape(b); err != nil {
		return nil, err
	}

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	var raw map[string][]map[string]interface{}
	if err := d.Decode(&raw); err != nil {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "could not decode: %v", err)
	}

	snap := make(Snapshot, len(raw))
	for name, recs := range raw {
		out := make([]M, 0, len(recs))
		for _, rec := range recs {
			out = append(out, M(normalizeNumbers(rec).(map[string]interface{})))
		}
		snap[name] = out
	}

	return snap, nil
}

func validateSnapshotShape(b []byte) error {
	if !gjson.ValidBytes(b) {
		return errors.Wrap(ErrInvalidSnapshot, "document is not valid JSON")
	}

	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return errors.Wrap(ErrInvalidSnapshot, "document must be an object of collections")
	}

	var err error
	root.ForEach(func(name, recs gjson.Result) bool {
		if !recs.IsArray() {
			err = errors.Wrapf(ErrInvalidSnapshot, "collection %s must be an array", name.String())
			return false
		}

		i := 0
		recs.ForEach(func(_, rec gjson.Result) bool {
			if !rec.IsObject() {
				err = errors.Wrapf(ErrInvalidSnapshot, "%s[%d] is not an object", name.String(), i)
				return false
			}
			i++
			return true
		})

		return err == nil
	})

	return err
}
