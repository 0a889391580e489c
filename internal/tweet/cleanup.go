package tweet

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/NissesSenap/tweet-pipeline/internal/flatten"
	"github.com/NissesSenap/tweet-pipeline/internal/logging"
)

// IgnoredFields are dropped at every level because the BigQuery tables
// have no columns for them.
var IgnoredFields = []string{
	"video_info",
	"scopes",
	"withheld_in_countries",
	"is_quote_status",
	"source_user_id",
	"quoted_status",
	"display_text_range",
	"quoted_status_id",
	"extended_tweet",
	"source_user_id_str",
	"quoted_status_id_str",
	"limit",
	"contributors",
	"withheld_copyright",
}

// Cleaner rewrites payloads in place so they match the tweets table schema.
type Cleaner struct {
	logger *zap.Logger
}

// NewCleaner returns a Cleaner that logs unparsable dates to logger.
func NewCleaner(logger *zap.Logger) *Cleaner {
	return &Cleaner{logger: logging.OrNop(logger)}
}

// Cleanup cleans p without logging.
func Cleanup(p Payload) Payload {
	return NewCleaner(nil).Cleanup(p)
}

// Cleanup walks p and, at every object level:
//   - removes null fields and IgnoredFields
//   - rewrites created_at as a UTC timestamp
//   - flattens coordinates arrays (bounding boxes become a flat list)
//   - replaces attributes with its JSON text
//
// Arrays are cleaned element by element. p is modified and returned.
func (c *Cleaner) Cleanup(p Payload) Payload {
	if p == nil {
		return nil
	}
	c.cleanObject(p)
	return p
}

func (c *Cleaner) cleanObject(obj map[string]any) {
	for key, value := range obj {
		switch {
		case value == nil:
			delete(obj, key)
		case strings.EqualFold(key, "created_at"):
			s, ok := value.(string)
			if !ok {
				continue
			}
			formatted, err := FormatCreatedAt(s)
			if err != nil {
				c.logger.Warn("Error while parsing date", zap.String("created_at", s), zap.Error(err))
				continue
			}
			obj[key] = formatted
		case strings.EqualFold(key, "coordinates") && flatten.IsSequence(value):
			leaves := slices.Collect(flatten.Values(value))
			if leaves == nil {
				leaves = []any{}
			}
			obj[key] = leaves
		case strings.EqualFold(key, "attributes"):
			obj[key] = compactJSON(value)
		default:
			obj[key] = c.clean(value)
		}
	}

	for _, key := range IgnoredFields {
		delete(obj, key)
	}
}

func (c *Cleaner) clean(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c.cleanObject(t)
		return t
	case []any:
		for i, e := range t {
			t[i] = c.clean(e)
		}
		return t
	}
	return v
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
