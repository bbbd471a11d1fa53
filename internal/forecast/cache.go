package forecast

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/DimaJoyti/analytics-engine/internal/timeseries"
)

// envelopeFormatVersion is prefixed to every serialized envelope so a future
// change to seasonalModel's shape can be detected before gob-decoding into
// the wrong struct version.
const envelopeFormatVersion byte = 1

// ModelEnvelope is what gets stored under the model:{scope} cache key.
// Replaces the original's pickled-model blob with an explicit, versioned
// gob encoding.
type ModelEnvelope struct {
	Fingerprint uint64
	CreatedAt   time.Time
	Body        []byte
}

// fingerprint hashes (row_count, sum_of_values, last_5_values) with FNV-1a;
// it is the sole signal the cache uses to decide whether a cached model is
// stale relative to the series it was trained on.
func fingerprint(series []timeseries.SeriesPoint) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", len(series))

	var sum float64
	for _, p := range series {
		sum += p.Value
	}
	fmt.Fprintf(h, "|%f", sum)

	tail := series
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	for _, p := range tail {
		fmt.Fprintf(h, "|%f", p.Value)
	}
	return h.Sum64()
}

// serializeModel encodes m into a versioned gob envelope.
func serializeModel(m *seasonalModel, fp uint64, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}

	env := ModelEnvelope{Fingerprint: fp, CreatedAt: now, Body: buf.Bytes()}
	var outer bytes.Buffer
	outer.WriteByte(envelopeFormatVersion)
	if err := gob.NewEncoder(&outer).Encode(env); err != nil {
		return nil, fmt.Errorf("failed to encode model envelope: %w", err)
	}
	return outer.Bytes(), nil
}

// deserializeModel decodes a previously-serialized envelope, returning the
// model only if its fingerprint matches wantFingerprint.
func deserializeModel(raw []byte, wantFingerprint uint64) (*seasonalModel, bool, error) {
	if len(raw) < 1 || raw[0] != envelopeFormatVersion {
		return nil, false, nil
	}

	var env ModelEnvelope
	if err := gob.NewDecoder(bytes.NewReader(raw[1:])).Decode(&env); err != nil {
		return nil, false, fmt.Errorf("failed to decode model envelope: %w", err)
	}
	if env.Fingerprint != wantFingerprint {
		return nil, false, nil
	}

	var m seasonalModel
	if err := gob.NewDecoder(bytes.NewReader(env.Body)).Decode(&m); err != nil {
		return nil, false, fmt.Errorf("failed to decode model: %w", err)
	}
	return &m, true, nil
}

// modelCacheKey is the model:{scope} key.
func modelCacheKey(scope Scope) string {
	return "model:" + string(scope)
}

// resultCacheKey is forecast:{scope}:{periods}. Deliberately omits the data
// fingerprint: a mutation not accompanied by an explicit Invalidate call may
// serve a stale forecast for up to the result TTL.
func resultCacheKey(scope Scope, periods int) string {
	return fmt.Sprintf("forecast:%s:%d", scope, periods)
}

// encodeFrames/decodeFrames serialize a materialized forecast for the short
// result cache.
func encodeFrames(frames []Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(frames); err != nil {
		return nil, fmt.Errorf("failed to encode forecast frames: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeFrames(raw []byte) ([]Frame, error) {
	var frames []Frame
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&frames); err != nil {
		return nil, fmt.Errorf("failed to decode forecast frames: %w", err)
	}
	return frames, nil
}
