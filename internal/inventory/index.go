// Package inventory implements the InventoryIndex component (spec §4.1):
// constant-time availability reads backed by atomic cache primitives, in
// the same redis.Client-over-context style as
// order_service/src/service/order_service.go's cache helpers and
// distribution_service/src/services/session_manager.go's dual
// redis+database residency pattern.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/catalog"
	"iaros/retailing-engine/internal/errs"
)

const (
	availKeyPrefix = "avail:"
	seatKeyPrefix  = "seat:"
	ticketSetKey   = "release_tickets"
)

// ReservationTicket is an opaque correlation id returned by TryReserve,
// used to make Release idempotent (spec §4.1, P4).
type ReservationTicket string

// SeatHold records ownership of a held seat.
type SeatHold struct {
	FlightID string
	Seat     string
	OrderID  string
	ExpireAt time.Time
}

// CapacitySource resolves a flight's authoritative capacity for lazy
// materialization of the availability counter on first read.
type CapacitySource interface {
	GetFlight(ctx context.Context, flightID string) (*catalog.Flight, error)
}

// Index is the redis-backed InventoryIndex.
type Index struct {
	rdb      *redis.Client
	capacity CapacitySource
	log      *zap.Logger
}

func New(rdb *redis.Client, capacity CapacitySource, log *zap.Logger) *Index {
	return &Index{rdb: rdb, capacity: capacity, log: log}
}

func availKey(flightID string) string { return availKeyPrefix + flightID }
func seatKey(flightID, seat string) string {
	return fmt.Sprintf("%s%s:%s", seatKeyPrefix, flightID, seat)
}

// Available returns the current counter, lazily materializing it to the
// flight's effective capacity on first read (spec §4.1).
func (ix *Index) Available(ctx context.Context, flightID string) (int, error) {
	key := availKey(flightID)
	val, err := ix.rdb.Get(ctx, key).Int()
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, errs.Transient("reading availability counter", err)
	}

	flight, ferr := ix.capacity.GetFlight(ctx, flightID)
	if ferr != nil {
		return 0, errs.Wrap(errs.KindNotFound, "flight not found for materialization", ferr)
	}
	cap := flight.EffectiveCapacity()

	// SetNX avoids clobbering a concurrent materialization.
	if err := ix.rdb.SetNX(ctx, key, cap, 0).Err(); err != nil {
		return 0, errs.Transient("materializing availability counter", err)
	}
	return ix.rdb.Get(ctx, key).Int()
}

// TryReserve atomically decrements the counter, refusing the decrement
// (and leaving the balance untouched) if the post-value would go negative. This
// is the core of P1 (no oversell): the Lua script makes check-and-decrement
// a single atomic cache operation.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local n = tonumber(ARGV[1])
local current = tonumber(redis.call("GET", key) or "0")
if current - n < 0 then
	return -1
end
return redis.call("DECRBY", key, n)
`)

func (ix *Index) TryReserve(ctx context.Context, flightID string, n int) (ReservationTicket, error) {
	// Ensure the counter is materialized before the atomic decrement.
	if _, err := ix.Available(ctx, flightID); err != nil {
		return "", err
	}

	result, err := reserveScript.Run(ctx, ix.rdb, []string{availKey(flightID)}, n).Int()
	if err != nil {
		return "", errs.Transient("reserving inventory", err)
	}
	if result < 0 {
		return "", errs.Unavailable(fmt.Sprintf("insufficient inventory for flight %s", flightID))
	}

	ticket := ReservationTicket(fmt.Sprintf("%s:%d:%s", flightID, n, uuid.New().String()))
	return ticket, nil
}

// Release issues a compensating increment, deduplicated per ticket so
// repeated release calls are idempotent (spec §4.1, P4).
func (ix *Index) Release(ctx context.Context, flightID string, n int, ticket ReservationTicket) error {
	added, err := ix.rdb.SAdd(ctx, ticketSetKey, string(ticket)).Result()
	if err != nil {
		return errs.Transient("recording release ticket", err)
	}
	if added == 0 {
		// Already released under this ticket.
		return nil
	}
	if err := ix.rdb.IncrBy(ctx, availKey(flightID), int64(n)).Err(); err != nil {
		return errs.Transient("releasing inventory", err)
	}
	return nil
}

// HoldSeat performs a set-if-absent with TTL; re-calling with the same
// order_id extends the TTL (owner-idempotent per spec §4.1 and I3).
var holdSeatScript = redis.NewScript(`
local key = KEYS[1]
local orderID = ARGV[1]
local ttlMs = ARGV[2]
local holder = redis.call("GET", key)
if holder == false then
	redis.call("SET", key, orderID, "PX", ttlMs)
	return 1
elseif holder == orderID then
	redis.call("PEXPIRE", key, ttlMs)
	return 1
else
	return 0
end
`)

func (ix *Index) HoldSeat(ctx context.Context, flightID, seat, orderID string, ttl time.Duration) (*SeatHold, error) {
	ok, err := holdSeatScript.Run(ctx, ix.rdb, []string{seatKey(flightID, seat)}, orderID, ttl.Milliseconds()).Int()
	if err != nil {
		return nil, errs.Transient("holding seat", err)
	}
	if ok == 0 {
		return nil, errs.Unavailable(fmt.Sprintf("seat %s on %s is already held", seat, flightID))
	}
	return &SeatHold{FlightID: flightID, Seat: seat, OrderID: orderID, ExpireAt: time.Now().Add(ttl)}, nil
}

// ReleaseSeat deletes the key only if the holder matches order_id
// (compare-and-delete), so a stale release from a superseded customization
// can't evict a newer holder.
var releaseSeatScript = redis.NewScript(`
local key = KEYS[1]
local orderID = ARGV[1]
local holder = redis.call("GET", key)
if holder == orderID then
	return redis.call("DEL", key)
end
return 0
`)

func (ix *Index) ReleaseSeat(ctx context.Context, flightID, seat, orderID string) error {
	if _, err := releaseSeatScript.Run(ctx, ix.rdb, []string{seatKey(flightID, seat)}, orderID).Int(); err != nil {
		return errs.Transient("releasing seat", err)
	}
	return nil
}
