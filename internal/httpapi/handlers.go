package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"iaros/retailing-engine/internal/errs"
	"iaros/retailing-engine/internal/hold"
	"iaros/retailing-engine/internal/offer"
	"iaros/retailing-engine/internal/order"
)

// searchOffersRequest is spec §6's searchOffers request shape.
type searchOffersRequest struct {
	AirlineID     string     `json:"airline_id" binding:"required"`
	Origin        string     `json:"origin" binding:"required"`
	Destination   string     `json:"destination" binding:"required"`
	DepartureDate time.Time  `json:"departure_date" binding:"required"`
	ReturnDate    *time.Time `json:"return_date"`
	Passengers    int        `json:"passengers" binding:"required"`
	Cabin         string     `json:"cabin"`
}

func (h *Handler) SearchOffers(c *gin.Context) {
	var req searchOffersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	set, err := h.generator.Generate(c.Request.Context(), offer.RequestParams{
		RequestID:   c.GetHeader("X-Request-ID"),
		AirlineID:   req.AirlineID,
		PrincipalID: principalID(c),
		Origin:      req.Origin,
		Destination: req.Destination,
		Departure:   req.DepartureDate,
		Passengers:  req.Passengers,
		Cabin:       req.Cabin,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": set.Offers})
}

// acceptOfferRequest is spec §6's acceptOffer request shape.
type acceptOfferRequest struct {
	Contact struct {
		Email string `json:"email" binding:"required"`
		Phone string `json:"phone"`
	} `json:"contact" binding:"required"`
	Travelers []struct {
		PTC       order.PTC `json:"ptc" binding:"required"`
		FirstName string    `json:"first_name" binding:"required"`
		LastName  string    `json:"last_name" binding:"required"`
		DOB       string    `json:"dob"`
	} `json:"travelers" binding:"required"`
	SeatSelections map[string]string `json:"seat_selections"`
}

func (h *Handler) AcceptOffer(c *gin.Context) {
	offerID := c.Param("offer_id")
	var req acceptOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	travelers := make([]order.Traveler, len(req.Travelers))
	for i, t := range req.Travelers {
		travelers[i] = order.Traveler{Index: i, PTC: t.PTC, FirstName: t.FirstName, LastName: t.LastName, DOB: t.DOB}
	}

	acceptedOrder, err := h.holds.Accept(c.Request.Context(), offerID, hold.AcceptRequest{
		PrincipalID:    principalID(c),
		Contact:        order.Contact{Email: req.Contact.Email, Phone: req.Contact.Phone},
		Travelers:      travelers,
		SeatSelections: req.SeatSelections,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acceptedOrder)
}

func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("order_id"), principalID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// customizeOrderRequest is spec §6's customizeOrder request shape.
type customizeOrderRequest struct {
	SeatSelections []struct {
		FlightID string `json:"flight_id" binding:"required"`
		Seat     string `json:"seat" binding:"required"`
	} `json:"seat_selections"`
}

func (h *Handler) CustomizeOrder(c *gin.Context) {
	orderID := c.Param("order_id")
	var req customizeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	ord, err := h.orders.Get(c.Request.Context(), orderID, principalID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if ord.Status != order.StatusProposed {
		writeError(c, errs.InvalidTransition("order is not PROPOSED"))
		return
	}

	for _, sel := range req.SeatSelections {
		oldSeat := currentSeat(ord, sel.FlightID)
		if err := h.holds.Customize(c.Request.Context(), ord, sel.FlightID, oldSeat, sel.Seat); err != nil {
			writeError(c, err)
			return
		}
	}

	ord, err = h.orders.Get(c.Request.Context(), orderID, principalID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ord)
}

func currentSeat(ord *order.Order, flightID string) string {
	for _, it := range ord.Items {
		meta, err := it.GetMetadata()
		if err != nil {
			continue
		}
		if fid, _ := meta["flight_id"].(string); fid == flightID {
			if seat, ok := meta["seat"].(string); ok {
				return seat
			}
		}
	}
	return ""
}

type startPaymentRequest struct {
	PaymentToken string `json:"payment_token" binding:"required"`
}

func (h *Handler) StartPayment(c *gin.Context) {
	orderID := c.Param("order_id")
	var req startPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	ord, err := h.orders.StartPayment(c.Request.Context(), orderID, principalID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	// startPayment only performs the lock-in transition (spec §4.5's
	// "Lock-in"); the payment_token travels with the client to
	// confirmPayment (webhook or poll, per §6), which is where the
	// external PaymentAdapter is actually invoked.
	c.JSON(http.StatusOK, gin.H{"status": ord.Status, "intent_ref": ord.OrderID})
}

type confirmPaymentRequest struct {
	PaymentToken string `json:"payment_token" binding:"required"`
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	orderID := c.Param("order_id")
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	ord, err := h.orders.ConfirmPayment(c.Request.Context(), orderID, principalID(c), req.PaymentToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": ord.Status, "fulfillment": ord.Fulfillment})
}

// modifyOrderRequest is spec §6's modifyOrder request shape.
type modifyOrderRequest struct {
	Add []struct {
		ProductID   string `json:"product_id" binding:"required"`
		ProductType string `json:"product_type" binding:"required"`
		UnitPrice   string `json:"unit_price" binding:"required"`
		Quantity    int    `json:"quantity" binding:"required"`
	} `json:"add"`
	RefundItems []string `json:"refund_items"`
}

func (h *Handler) ModifyOrder(c *gin.Context) {
	orderID := c.Param("order_id")
	var req modifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	modReq, err := buildModifyRequest(req)
	if err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	ord, err := h.orders.Modify(c.Request.Context(), orderID, principalID(c), modReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ord)
}
