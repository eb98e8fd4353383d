package trainer

import (
	"shapelab/internal/calibrate"
	"shapelab/internal/metrics"
	"shapelab/internal/partials"
)

// TrainRequest asks for a fresh fit. Nil fields take the configured defaults.
type TrainRequest struct {
	Dataset string `json:"dataset"`
	Seed    int64  `json:"seed"`
	Points  *int   `json:"points,omitempty"`
	Model   string `json:"model,omitempty"`

	// Bandwidth is accepted for frontend compatibility and echoed unchanged.
	Bandwidth *float64 `json:"bandwidth,omitempty"`

	NEstimators   *int     `json:"n_estimators,omitempty"`
	BoostRate     *float64 `json:"boost_rate,omitempty"`
	InitReg       *float64 `json:"init_reg,omitempty"`
	ELMAlpha      *float64 `json:"elm_alpha,omitempty"`
	EarlyStopping *int     `json:"early_stopping,omitempty"`
}

// RefitRequest is a TrainRequest plus the user's edits.
type RefitRequest struct {
	TrainRequest
	Partials           []partials.Partial `json:"partials"`
	Locked             []string           `json:"locked,omitempty"`
	Rounds             int                `json:"rounds"`
	RefitEarlyStopping *int               `json:"refit_early_stopping,omitempty"`
}

// Response is the full result of a train or refit request. It is also the
// snapshot format of stored models.
type Response struct {
	Dataset   string         `json:"dataset"`
	Model     string         `json:"model"`
	Task      calibrate.Task `json:"task"`
	Source    string         `json:"source"`
	Seed      int64          `json:"seed"`
	Bandwidth *float64       `json:"bandwidth,omitempty"`
	Points    int            `json:"points"`

	Intercept   float64            `json:"intercept"`
	Partials    []partials.Partial `json:"partials"`
	Predictions []float64          `json:"predictions"`
	Y           []float64          `json:"y"`
	TestPreds   []float64          `json:"testPreds"`
	TestY       []float64          `json:"testY"`

	TrainMetrics metrics.Metrics `json:"trainMetrics"`
	TestMetrics  metrics.Metrics `json:"testMetrics"`

	KnotCounts     map[string]int `json:"knotCounts,omitempty"`
	EditedFeatures []string       `json:"editedFeatures,omitempty"`
	LockedFeatures []string       `json:"lockedFeatures,omitempty"`
}
