package record

import (
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"strings"
)

// Reserved payload keys used by the record variants.
const (
	KeyVector    = "vector"
	KeySeries    = "series"
	KeyImageData = "image_data"
	KeyImagePath = "image_path"
	KeyText      = "text"
	KeyEncrypted = "data"
)

type VectorRecord struct{ Record }

func NewVector(id uint64, data map[string]any) (*VectorRecord, error) {
	vec, err := toFloats(data[KeyVector])
	if err != nil {
		return nil, fmt.Errorf("invalid vector payload: %v", err)
	}
	r := &VectorRecord{*New(id, data)}
	r.Data.Set(KeyVector, vec)
	return r, nil
}

func (r *VectorRecord) Type() string { return "vector" }

func (r *VectorRecord) Vector() []float64 { return r.Data.Get(KeyVector).([]float64) }

func (r *VectorRecord) Magnitude() float64 {
	sum := 0.0
	for _, x := range r.Vector() {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (r *VectorRecord) Normalize() []float64 {
	vec := r.Vector()
	out := make([]float64, len(vec))
	mag := r.Magnitude()
	if mag == 0 {
		return out
	}
	for i, x := range vec {
		out[i] = x / mag
	}
	return out
}

func (r *VectorRecord) DotProduct(other []float64) float64 {
	vec := r.Vector()
	n := len(vec)
	if len(other) < n {
		n = len(other)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += vec[i] * other[i]
	}
	return sum
}

type TimeSeriesRecord struct{ Record }

func NewTimeSeries(id uint64, data map[string]any) (*TimeSeriesRecord, error) {
	series, err := toFloats(data[KeySeries])
	if err != nil {
		return nil, fmt.Errorf("invalid time series payload: %v", err)
	}
	r := &TimeSeriesRecord{*New(id, data)}
	r.Data.Set(KeySeries, series)
	return r, nil
}

func (r *TimeSeriesRecord) Type() string { return "time_series" }

func (r *TimeSeriesRecord) Series() []float64 { return r.Data.Get(KeySeries).([]float64) }

// MovingAverage returns the rolling mean over the given window.
// An empty slice is returned when the window is larger than the series.
func (r *TimeSeriesRecord) MovingAverage(window int) []float64 {
	series := r.Series()
	if window <= 0 || window > len(series) {
		return []float64{}
	}
	out := make([]float64, 0, len(series)-window+1)
	for i := 0; i+window <= len(series); i++ {
		sum := 0.0
		for _, x := range series[i : i+window] {
			sum += x
		}
		out = append(out, sum/float64(window))
	}
	return out
}

type ImageRecord struct{ Record }

// NewImage reads image bytes from the path in the payload at construction
// time. When the path does not resolve to a file, the payload itself is
// treated as base64 image bytes and the stored path is "N/A".
func NewImage(id uint64, data map[string]any) (*ImageRecord, error) {
	path, _ := data[KeyImageData].(string)
	raw, err := os.ReadFile(path)
	if err == nil {
		r := &ImageRecord{*New(id, map[string]any{})}
		r.Data.Set(KeyImageData, raw)
		r.Data.Set(KeyImagePath, path)
		return r, nil
	}

	decoded, b64Err := base64.StdEncoding.DecodeString(path)
	if b64Err != nil {
		return nil, fmt.Errorf("invalid image path: %v", err)
	}
	r := &ImageRecord{*New(id, map[string]any{})}
	r.Data.Set(KeyImageData, decoded)
	r.Data.Set(KeyImagePath, "N/A")
	return r, nil
}

func (r *ImageRecord) Type() string { return "image" }

func (r *ImageRecord) ImageData() []byte { return r.Data.Get(KeyImageData).([]byte) }

func (r *ImageRecord) ImagePath() string { return r.Data.Get(KeyImagePath).(string) }

// Size returns the image size in bytes.
func (r *ImageRecord) Size() int { return len(r.ImageData()) }

func (r *ImageRecord) ToBase64() string {
	return base64.StdEncoding.EncodeToString(r.ImageData())
}

type TextRecord struct{ Record }

func NewText(id uint64, data map[string]any) (*TextRecord, error) {
	if _, ok := data[KeyText].(string); !ok {
		return nil, fmt.Errorf("text payload must be a string, got %T", data[KeyText])
	}
	return &TextRecord{*New(id, data)}, nil
}

func (r *TextRecord) Type() string { return "text" }

func (r *TextRecord) Text() string { return r.Data.Get(KeyText).(string) }

func (r *TextRecord) WordCount() int { return len(strings.Fields(r.Text())) }

func (r *TextRecord) Upper() string { return strings.ToUpper(r.Text()) }

func (r *TextRecord) Lower() string { return strings.ToLower(r.Text()) }

type EncryptedRecord struct{ Record }

// NewEncrypted encrypts the "data" payload field under the given key.
// An empty key means the payload is already an encrypted token and is
// stored verbatim.
func NewEncrypted(id uint64, data map[string]any, key string) (*EncryptedRecord, error) {
	plaintext, ok := data[KeyEncrypted].(string)
	if !ok {
		return nil, fmt.Errorf("encrypted payload must be a string, got %T", data[KeyEncrypted])
	}

	token := plaintext
	if key != "" {
		var err error
		token, err = Encrypt(plaintext, key)
		if err != nil {
			return nil, err
		}
	}
	return &EncryptedRecord{*New(id, map[string]any{KeyEncrypted: token})}, nil
}

func (r *EncryptedRecord) Type() string { return "encrypted" }

func (r *EncryptedRecord) Token() string { return r.Data.Get(KeyEncrypted).(string) }

// Decrypt returns the plaintext payload, or a DecryptionError naming the
// record when the key does not match.
func (r *EncryptedRecord) Decrypt(key string) (string, error) {
	plaintext, err := Decrypt(r.Token(), key)
	if err != nil {
		return "", &DecryptionError{RecordID: r.ID, Cause: err}
	}
	return plaintext, nil
}
