package models

// AnimationState is the response for GET /v1/animation and every command.
type AnimationState struct {
	Layer           string     `json:"layer"`
	LayerLabel      string     `json:"layerLabel"`
	Mode            string     `json:"mode"`
	Render          string     `json:"render"`
	FrameIndex      int        `json:"frameIndex"`
	FrameCount      int        `json:"frameCount"`
	FrameTime       *Timestamp `json:"frameTime,omitempty"`
	Playing         bool       `json:"playing"`
	TileSize        int        `json:"tileSize"`
	Opacity         float64    `json:"opacity"`
	FrameIntervalMs int64      `json:"frameIntervalMs"`
	MaxFrames       int        `json:"maxFrames"`
	CatalogID       string     `json:"catalogId,omitempty"`
	FetchedAt       *Timestamp `json:"fetchedAt,omitempty"`
	Summary         string     `json:"summary"`
}

// Frame is one frame of the active layer.
type Frame struct {
	Token string     `json:"token"`
	Time  *Timestamp `json:"time,omitempty"`
}

// FrameList is the response for GET /v1/animation/frames.
type FrameList struct {
	Layer      string  `json:"layer"`
	FrameIndex int     `json:"frameIndex"`
	Frames     []Frame `json:"frames"`
	Issue      string  `json:"issue,omitempty"`
}

// RefreshResult is the response for POST /v1/animation/refresh.
type RefreshResult struct {
	// Applied is false when a newer refresh completed first.
	Applied bool           `json:"applied"`
	Counts  map[string]int `json:"counts,omitempty"`
	State   AnimationState `json:"state"`
}

// Budget is the response for GET /v1/budget.
type Budget struct {
	MemoryGB     float64 `json:"memoryGb"`
	Mobile       bool    `json:"mobile"`
	Tier         string  `json:"tier"`
	MaxFrames    int     `json:"maxFrames"`
	FrameCeiling int     `json:"frameCeiling"`
}

// BudgetQuery holds the query parameters of GET /v1/budget.
type BudgetQuery struct {
	MemoryGB float64 `json:"memoryGb" validate:"gte=0,lte=1024"`
	Mobile   bool    `json:"mobile"`
}

// SelectLayerRequest is the body of PUT /v1/animation/layer.
type SelectLayerRequest struct {
	Type string `json:"type" validate:"required,oneof=radar satellite clouds temperature"`
}

// SelectModeRequest is the body of PUT /v1/animation/mode.
type SelectModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=auto animated static off"`
}

// ResolutionRequest is the body of PUT /v1/animation/resolution.
type ResolutionRequest struct {
	TileSize int `json:"tileSize" validate:"required,oneof=256 512"`
}

// OpacityRequest is the body of PUT /v1/animation/opacity. Out of range
// values are clamped, not rejected.
type OpacityRequest struct {
	Opacity *float64 `json:"opacity" validate:"required"`
}

// IntervalRequest is the body of PUT /v1/animation/interval. Values are
// clamped into the playback interval range.
type IntervalRequest struct {
	IntervalMs int `json:"intervalMs" validate:"required,gt=0"`
}

// MaxFramesRequest is the body of PUT /v1/animation/max-frames.
type MaxFramesRequest struct {
	MaxFrames int `json:"maxFrames" validate:"required,gt=0"`
}

// StepRequest is the body of POST /v1/animation/step.
type StepRequest struct {
	Direction string `json:"direction" validate:"required,oneof=forward backward"`
}

// FrameRequest is the body of PUT /v1/animation/frame.
type FrameRequest struct {
	Index *int `json:"index" validate:"required"`
}

// Step directions.
const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"
)
