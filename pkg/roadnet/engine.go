package roadnet

import (
	"context"
	"errors"

	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
)

var _ engine.Engine = (*Network)(nil)

// FindKShortestRoutes implements engine.Engine. Query failures are reported
// inside the payload as {"error": "..."}; only context cancellation and
// encoding problems come back as Go errors.
func (n *Network) FindKShortestRoutes(ctx context.Context, startLat, startLon, endLat, endLon float64, useAStar int) (engine.Payload, error) {
	res, err := n.Routes(ctx, geo.Pt(startLat, startLon), geo.Pt(endLat, endLon), useAStar == 1)
	return encode(err, func(buf *engine.Buffer) error {
		return engine.EncodeRoutes(buf, res)
	})
}

// CriticalPoints implements engine.Engine.
func (n *Network) CriticalPoints(ctx context.Context) (engine.Payload, error) {
	res, err := n.Critical(ctx)
	return encode(err, func(buf *engine.Buffer) error {
		return engine.EncodeCritical(buf, res)
	})
}

func encode(queryErr error, write func(*engine.Buffer) error) (engine.Payload, error) {
	if queryErr != nil && (errors.Is(queryErr, context.Canceled) || errors.Is(queryErr, context.DeadlineExceeded)) {
		return nil, queryErr
	}
	buf := engine.NewBuffer()
	var err error
	if queryErr != nil {
		err = engine.EncodeError(buf, queryErr.Error())
	} else {
		err = write(buf)
	}
	if err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}
