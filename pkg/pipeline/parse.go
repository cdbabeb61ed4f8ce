package pipeline

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
)

// Load reads a payload file.
func Load(path string) (payload.Payload, error) {
	p, err := payload.ReadFile(path)
	if err != nil {
		return payload.Payload{}, errors.Wrap(errors.ErrCodeInvalidPayload, err, "read payload %s", path)
	}
	return p, nil
}

// Index sanitizes p and logs every record it drops. An empty result is an
// error: there is nothing to draw.
func Index(p payload.Payload, logger *log.Logger) (*payload.Index, error) {
	x := payload.NewIndex(p)
	for _, d := range x.Dropped() {
		logger.Debug("dropped malformed record", "record", d.String())
	}
	if x.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPayload, "payload has no nodes")
	}
	return x, nil
}
