// Package external implements the collaborator interfaces the core calls
// out to (flight search, ancillary catalog, payment) as resty clients
// wrapped in gobreaker circuit breakers, grounded in
// distribution_service/src/services/gds_service.go's GDSService pattern.
// Payment gateway internals and admin rule-authoring UIs are out of
// scope; only this call boundary is implemented.
package external

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/errs"
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// FlightSearchClient implements offer.FlightSearch against an external
// schedule/availability service (spec §4.4 step 1).
type FlightSearchClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewFlightSearchClient(baseURL string, timeout time.Duration, log *zap.Logger) *FlightSearchClient {
	client := resty.New().SetBaseURL(baseURL).SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	return &FlightSearchClient{http: client, breaker: newBreaker("flight_search"), log: log}
}

type flightSearchResponse struct {
	Flights []catalog.Flight `json:"flights"`
}

func (c *FlightSearchClient) Search(ctx context.Context, origin, destination string, departure time.Time) ([]catalog.Flight, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body flightSearchResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"origin":      origin,
				"destination": destination,
				"departure":   departure.UTC().Format(time.RFC3339),
			}).
			SetResult(&body).
			Get("/flights/search")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, errs.New(errs.KindTransient, "flight search returned "+resp.Status())
		}
		return body.Flights, nil
	})
	if err != nil {
		c.log.Warn("flight search call failed", zap.Error(err))
		return nil, errs.Transient("flight search unavailable", err)
	}
	return result.([]catalog.Flight), nil
}

// AncillaryCatalogClient implements offer.AncillaryCatalog against the
// product catalog collaborator.
type AncillaryCatalogClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewAncillaryCatalogClient(baseURL string, timeout time.Duration, log *zap.Logger) *AncillaryCatalogClient {
	client := resty.New().SetBaseURL(baseURL).SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	return &AncillaryCatalogClient{http: client, breaker: newBreaker("ancillary_catalog"), log: log}
}

type ancillaryResponse struct {
	Products []catalog.Product `json:"products"`
}

func (c *AncillaryCatalogClient) AncillariesFor(ctx context.Context, airlineID string, flightID string) ([]catalog.Product, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body ancillaryResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"airline_id": airlineID, "flight_id": flightID}).
			SetResult(&body).
			Get("/ancillaries")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, errs.New(errs.KindTransient, "ancillary catalog returned "+resp.Status())
		}
		return body.Products, nil
	})
	if err != nil {
		c.log.Warn("ancillary catalog call failed", zap.Error(err))
		return nil, errs.Transient("ancillary catalog unavailable", err)
	}
	return result.([]catalog.Product), nil
}
