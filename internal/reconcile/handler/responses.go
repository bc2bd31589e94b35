package handler

import "sitecarbon/internal/ingest/models"

type RawDeliveriesResponse struct {
	Success       bool                 `json:"success"`
	RawDeliveries []models.RawDelivery `json:"rawDeliveries"`
}

type ResolveResponse struct {
	Success  bool             `json:"success"`
	Delivery *models.Delivery `json:"delivery,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func FromRawDeliveries(raws []models.RawDelivery) RawDeliveriesResponse {
	if raws == nil {
		raws = []models.RawDelivery{}
	}
	for i := range raws {
		if raws[i].ValidationErrors == nil {
			raws[i].ValidationErrors = []string{}
		}
	}
	return RawDeliveriesResponse{Success: true, RawDeliveries: raws}
}
