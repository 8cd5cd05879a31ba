// Package stub serves generated forecasts over REST and RPC so the
// benchmark has something to measure.
package stub

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"sync"

	"github.com/appnet-org/wirebench/pkg/forecast"
	"github.com/appnet-org/wirebench/pkg/rpc"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MaxReturnCount caps a single response.
const MaxReturnCount = 1_000_000

// Source generates forecast records.
type Source struct {
	clock clockwork.Clock

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource creates a Source. A nil clock means the real clock.
func NewSource(clock clockwork.Clock, seed int64) *Source {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Source{clock: clock, rnd: rand.New(rand.NewSource(seed))}
}

// Forecasts returns n records starting tomorrow.
func (s *Source) Forecasts(n int32) []forecast.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return forecast.Generate(n, s.clock.Now(), s.rnd)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewRouter returns the REST forecast API.
func NewRouter(src *Source) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/weatherforecast", func(c *gin.Context) {
		n, err := parseReturnCount(c.Query("returnCount"))
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid returnCount", Details: err.Error()})
			return
		}
		c.JSON(http.StatusOK, src.Forecasts(n))
	})
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	})
	return r
}

func parseReturnCount(raw string) (int32, error) {
	if raw == "" {
		return forecast.DefaultReturnCount, nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > MaxReturnCount {
		return 0, strconv.ErrRange
	}
	return int32(n), nil
}

// ForecastService describes the RPC forecast service backed by src.
func ForecastService(src *Source) *rpc.ServiceDesc {
	return &rpc.ServiceDesc{
		ServiceName: forecast.ServiceName,
		Methods: []rpc.MethodDesc{{
			MethodName: forecast.GetForecastsName,
			Handler: func(ctx context.Context, dec func(any) error) (any, error) {
				var req forecast.GetForecastsRequest
				if err := dec(&req); err != nil {
					return nil, err
				}
				if req.ReturnCount < 0 || req.ReturnCount > MaxReturnCount {
					return nil, status.Errorf(codes.InvalidArgument, "return_count %d out of range [0, %d]", req.ReturnCount, MaxReturnCount)
				}
				return &forecast.GetForecastsReply{Forecasts: src.Forecasts(req.ReturnCount)}, nil
			},
		}},
	}
}
