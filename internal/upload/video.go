package upload

import (
	"context"
	"io"

	"crashanalytix-console/internal/model"
	"crashanalytix-console/internal/preview"
)

// Predictor is the accident-detection endpoint.
type Predictor interface {
	Predict(ctx context.Context, filename string, video io.Reader) (model.PredictResponse, error)
}

// AccidentData is what a successful "Accident Detected" upload captures for
// the details projection.
type AccidentData struct {
	Severity string         `json:"severity"`
	Entities []model.Entity `json:"entities"`
}

// VideoController runs accident detection uploads against /predict.
type VideoController struct {
	*Controller[model.DetectionResult]
}

func NewVideoController(predictor Predictor, store *preview.Store, opts Options) *VideoController {
	perform := func(ctx context.Context, filename string, video io.Reader) (model.DetectionResult, error) {
		resp, err := predictor.Predict(ctx, filename, video)
		if err != nil {
			return model.DetectionResult{}, err
		}
		return resp.Normalize()
	}
	describe := func(r model.DetectionResult) Outcome {
		return Outcome{Text: string(r.Classification), Severity: r.Severity, Entities: len(r.Entities)}
	}
	return &VideoController{Controller: newController[model.DetectionResult](KindAccident, store, perform, describe, opts)}
}

// ResultText is the classification of the last completed upload, the error
// sentinel after a failure, or empty while idle or uploading.
func (v *VideoController) ResultText() string {
	state := v.State()
	switch state.Status {
	case StatusSuccess:
		return string(state.Result.Classification)
	case StatusFailed:
		return state.Message
	default:
		return ""
	}
}

// AccidentData is only available after a successful upload classified as
// an accident.
func (v *VideoController) AccidentData() (AccidentData, bool) {
	return AccidentDataOf(v.State())
}

// AccidentDataOf extracts the accident data captured by state.
func AccidentDataOf(state State[model.DetectionResult]) (AccidentData, bool) {
	result, ok := state.Succeeded()
	if !ok || !result.AccidentDetected() {
		return AccidentData{}, false
	}
	severity := result.Severity
	if severity == "" {
		severity = string(model.DefaultSeverity)
	}
	entities := result.Entities
	if entities == nil {
		entities = []model.Entity{}
	}
	return AccidentData{Severity: severity, Entities: entities}, true
}

// ProcessedView projects the captured accident data, stamped with the
// current time. It reports false when no accident data is captured.
func (v *VideoController) ProcessedView() (model.ProcessedAccidentView, bool) {
	data, ok := v.AccidentData()
	if !ok {
		return model.ProcessedAccidentView{}, false
	}
	return model.BuildProcessedView(data.Severity, data.Entities, v.clock.Now()), true
}
