package errinfo

// ErrorInfo is the structured error payload returned on every failed
// operation. The process never terminates on a request error; handlers
// map failures into one of these and the RPC layer serializes it.
type ErrorInfo struct {
	ErrorCode string   `json:"error_code"`
	Phase     string   `json:"phase,omitempty"`
	Retryable bool     `json:"retryable"`
	Actions   []string `json:"actions,omitempty"`
	Profile   string   `json:"profile,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

const (
	CodeFileNotFound      = "FILE_NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeSlicerNotFound    = "SLICER_NOT_FOUND"
	CodeSlicerTimeout     = "SLICER_TIMEOUT"
	CodeOutputParseFailed = "OUTPUT_PARSE_FAILED"
	CodePresetUnavailable = "PRESET_UNAVAILABLE"
	CodeSettingsFailed    = "SETTINGS_FAILED"
)

const (
	ActionRetry         = "retry"
	ActionCheckFile     = "check_file"
	ActionInstallSlicer = "install_slicer"
)

const (
	PhaseMetadata = "metadata"
	PhaseSlice    = "slice"
	PhaseCompare  = "compare"
	PhaseBatch    = "batch"
	PhaseSettings = "settings"
)

func FileNotFound(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileNotFound,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionCheckFile},
		Detail:    detail,
	}
}

func InvalidInput(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeInvalidInput,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func SlicerNotFound(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeSlicerNotFound,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionInstallSlicer},
		Detail:    "slicer CLI not found in PATH; install OrcaSlicer or set PRINTBENCH_SLICER_PATH",
	}
}

func SlicerTimeout(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeSlicerTimeout,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func OutputParseFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeOutputParseFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func PresetUnavailable(phase, profile, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodePresetUnavailable,
		Phase:     phase,
		Retryable: false,
		Profile:   profile,
		Detail:    detail,
	}
}

func SettingsFailed(detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeSettingsFailed,
		Phase:     PhaseSettings,
		Retryable: false,
		Detail:    detail,
	}
}

// WithProfile tags an error with the preset it belongs to, for per-preset
// entries in comparison results.
func (e *ErrorInfo) WithProfile(profile string) *ErrorInfo {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Profile = profile
	return &clone
}
