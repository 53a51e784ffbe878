package upload

import (
	"context"
	"io"

	"crashanalytix-console/internal/model"
	"crashanalytix-console/internal/preview"
)

// PlateDetector is the license-plate endpoint.
type PlateDetector interface {
	DetectLicensePlate(ctx context.Context, filename string, video io.Reader) (model.PlateResponse, error)
}

// PlateController runs license-plate uploads. Its result is the first
// detected plate or model.NoPlateDetected.
type PlateController struct {
	*Controller[string]
}

func NewPlateController(detector PlateDetector, store *preview.Store, opts Options) *PlateController {
	perform := func(ctx context.Context, filename string, video io.Reader) (string, error) {
		resp, err := detector.DetectLicensePlate(ctx, filename, video)
		if err != nil {
			return "", err
		}
		return resp.PlateText(), nil
	}
	describe := func(plate string) Outcome {
		return Outcome{Text: plate}
	}
	return &PlateController{Controller: newController[string](KindPlate, store, perform, describe, opts)}
}

func (p *PlateController) ResultText() string {
	state := p.State()
	switch state.Status {
	case StatusSuccess:
		return state.Result
	case StatusFailed:
		return state.Message
	default:
		return ""
	}
}
