package record_test

import (
	"testing"

	"github.com/segadb/segadb/internal/record"
	"gotest.tools/assert"
)

func TestRecordCopy(t *testing.T) {
	r := record.New(7, map[string]any{"name": "ada"})
	c := r.Copy()
	c.Data.Set("name", "grace")

	assert.Equal(t, r.Data.Get("name"), "ada")
	assert.Equal(t, c.ID, uint64(7))

	t.Run("nested values do not alias", func(t *testing.T) {
		r := record.New(1, map[string]any{
			"tags":   []any{"a", "b"},
			"scores": []float64{1, 2},
			"meta":   map[string]any{"rank": 1},
		})
		c := r.Copy()

		r.Data.Get("tags").([]any)[0] = "z"
		r.Data.Get("scores").([]float64)[0] = 9
		r.Data.Get("meta").(map[string]any)["rank"] = 2

		assert.Equal(t, c.Data.Get("tags").([]any)[0], "a")
		assert.Equal(t, c.Data.Get("scores").([]float64)[0], 1.0)
		assert.Equal(t, c.Data.Get("meta").(map[string]any)["rank"], 1)
	})
}

func TestVectorRecord(t *testing.T) {
	r, err := record.NewVector(1, map[string]any{"vector": []any{3.0, 4.0}})
	assert.NilError(t, err)
	assert.Equal(t, r.Magnitude(), 5.0)

	norm := r.Normalize()
	assert.Equal(t, norm[0], 0.6)
	assert.Equal(t, norm[1], 0.8)

	assert.Equal(t, r.DotProduct([]float64{1, 1}), 7.0)

	t.Run("zero vector normalizes to zeros", func(t *testing.T) {
		r, err := record.NewVector(2, map[string]any{"vector": []float64{0, 0, 0}})
		assert.NilError(t, err)
		assert.DeepEqual(t, r.Normalize(), []float64{0, 0, 0})
	})

	t.Run("non-numeric payload rejected", func(t *testing.T) {
		_, err := record.NewVector(3, map[string]any{"vector": []any{"a"}})
		assert.ErrorContains(t, err, "not numeric")
	})
}

func TestTimeSeriesRecord(t *testing.T) {
	r, err := record.NewTimeSeries(1, map[string]any{"series": []float64{1, 2, 3, 4}})
	assert.NilError(t, err)

	avg := r.MovingAverage(2)
	assert.DeepEqual(t, avg, []float64{1.5, 2.5, 3.5})

	assert.Equal(t, len(r.MovingAverage(10)), 0)
}

func TestTextRecord(t *testing.T) {
	r, err := record.NewText(1, map[string]any{"text": "Hello big world"})
	assert.NilError(t, err)
	assert.Equal(t, r.WordCount(), 3)
	assert.Equal(t, r.Upper(), "HELLO BIG WORLD")
	assert.Equal(t, r.Lower(), "hello big world")
}

func TestEncryptedRecord(t *testing.T) {
	key := record.GenerateKey()

	r, err := record.NewEncrypted(9, map[string]any{"data": "top secret"}, key)
	assert.NilError(t, err)
	assert.Assert(t, r.Token() != "top secret")

	plaintext, err := r.Decrypt(key)
	assert.NilError(t, err)
	assert.Equal(t, plaintext, "top secret")

	t.Run("wrong key fails with DecryptionError", func(t *testing.T) {
		_, err := r.Decrypt(record.GenerateKey())
		assert.Assert(t, err != nil)
		derr, ok := err.(*record.DecryptionError)
		assert.Assert(t, ok)
		assert.Equal(t, derr.RecordID, uint64(9))
	})

	t.Run("empty key stores token verbatim", func(t *testing.T) {
		pre, err := record.NewEncrypted(10, map[string]any{"data": r.Token()}, "")
		assert.NilError(t, err)

		plaintext, err := pre.Decrypt(key)
		assert.NilError(t, err)
		assert.Equal(t, plaintext, "top secret")
	})
}

func TestCryptoRoundTrip(t *testing.T) {
	key := record.GenerateKey()
	token, err := record.Encrypt("payload", key)
	assert.NilError(t, err)

	out, err := record.Decrypt(token, key)
	assert.NilError(t, err)
	assert.Equal(t, out, "payload")

	// tokens are nonce-prefixed, so they never repeat
	token2, err := record.Encrypt("payload", key)
	assert.NilError(t, err)
	assert.Assert(t, token != token2)

	_, err = record.Decrypt(token, record.GenerateKey())
	assert.ErrorContains(t, err, "authentication failed")
}
