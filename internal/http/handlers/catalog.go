package handlers

import (
	"net/http"

	"mockupstudio/internal/domain"
)

type designTypeView struct {
	ID    domain.DesignType `json:"id"`
	Label string            `json:"label"`
}

type catalogResponse struct {
	Styles        []domain.StyleInfo `json:"styles"`
	DefaultStyle  domain.MockupStyle `json:"default_style"`
	DesignTypes   []designTypeView   `json:"design_types"`
	AcceptedTypes []string           `json:"accepted_types"`
	MaxUpload     int64              `json:"max_upload_bytes"`
}

// Catalog lists the selectable options for the UI.
func (a *App) Catalog(w http.ResponseWriter, r *http.Request) {
	designs := make([]designTypeView, 0, len(domain.DesignTypes()))
	for _, d := range domain.DesignTypes() {
		designs = append(designs, designTypeView{ID: d, Label: d.Label()})
	}
	a.json(w, http.StatusOK, catalogResponse{
		Styles:        domain.Styles(),
		DefaultStyle:  domain.DefaultStyle,
		DesignTypes:   designs,
		AcceptedTypes: domain.AcceptedMIMETypes(),
		MaxUpload:     a.maxUpload,
	})
}
