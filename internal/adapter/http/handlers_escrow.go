package http

import (
	"net/http"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
)

func (h *Handlers) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[escrow.CreateRequest](w, r)
	if !ok {
		return
	}
	req.Buyer = caller

	rec, err := h.Escrow.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "escrow not found")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) ListEscrows(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	records, err := h.Escrow.ListByParticipant(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err, "escrows not found")
		return
	}
	if records == nil {
		records = []escrow.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handlers) GetEscrow(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Escrow.Get(r.Context(), urlParam(r, "buyer"), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type deliveryRequest struct {
	Proof string `json:"proof"`
}

func (h *Handlers) SubmitDelivery(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[deliveryRequest](w, r)
	if !ok {
		return
	}

	rec, err := h.Escrow.SubmitDelivery(r.Context(), caller, urlParam(r, "buyer"), urlParam(r, "id"), req.Proof)
	if err != nil {
		writeDomainError(w, err, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) ApproveDelivery(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	rec, err := h.Escrow.ApproveDelivery(r.Context(), caller, urlParam(r, "buyer"), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) FileDispute(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[disputeRequest](w, r)
	if !ok {
		return
	}

	rec, err := h.Escrow.FileDispute(r.Context(), caller, urlParam(r, "buyer"), urlParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) RefundExpired(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	rec, err := h.Escrow.RefundExpired(r.Context(), caller, urlParam(r, "buyer"), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type arbitrateRequest struct {
	ReleaseBps uint64 `json:"release_bps"`
}

func (h *Handlers) Arbitrate(w http.ResponseWriter, r *http.Request) {
	caller := callerOr(r, "arbitrator")
	req, ok := readJSON[arbitrateRequest](w, r)
	if !ok {
		return
	}

	rec, err := h.Escrow.Arbitrate(r.Context(), caller, urlParam(r, "buyer"), urlParam(r, "id"), req.ReleaseBps)
	if err != nil {
		writeDomainError(w, err, "escrow not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
