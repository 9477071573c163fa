package dispatch

import (
	"fmt"
	"math"
	"time"

	"campuspush/internal/types"
)

// timestampLayout matches the millisecond ISO-8601 form mobile clients parse.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Augmentation is the per-mode input to Augment.
type Augmentation struct {
	DefaultType string
	// Campus is set for broadcasts only.
	Campus string
	// Now stamps every device payload.
	Now time.Time
}

// Shaped holds the derived payloads for one request.
type Shaped struct {
	// Message is the data map sent to devices.
	Message map[string]any
	// Record is the data map stored with each log entry. It carries the
	// campus for broadcasts but never the dispatch timestamp.
	Record map[string]any
	// Type is the resolved notification type.
	Type string
}

// Augment derives the device and log payloads from the caller's data. The
// input map is not modified. A caller-supplied "type" wins over the mode
// default unless it is empty, false, zero or null, and is forwarded to
// devices unchanged. The campus name always overrides a caller value.
func Augment(data map[string]any, a Augmentation) Shaped {
	var wireType any = a.DefaultType
	notifType := a.DefaultType
	if v, ok := data["type"]; ok && truthy(v) {
		wireType = v
		notifType = fmt.Sprint(v)
	}

	message := make(map[string]any, len(data)+3)
	record := make(map[string]any, len(data)+1)
	for k, v := range data {
		message[k] = v
		record[k] = v
	}

	message["type"] = wireType
	message["timestamp"] = a.Now.UTC().Format(timestampLayout)
	if a.Campus != "" {
		message["campus"] = a.Campus
		record["campus"] = a.Campus
	}

	return Shaped{Message: message, Record: record, Type: notifType}
}

// augmentationFor returns the augmentation for an audience.
func augmentationFor(aud types.Audience, now time.Time) Augmentation {
	a := Augmentation{DefaultType: aud.DefaultType(), Now: now}
	if aud.Mode == types.AudienceCampus {
		a.Campus = aud.Campus
	}
	return a
}

// truthy reports whether a decoded JSON value counts as set.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}
