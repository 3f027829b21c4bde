package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 메트릭, 리포트에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5
//   Entities  Usage  Snapshots  Features  Labels  Assembly

// Stage represents a pipeline stage
type Stage string

const (
	// StageEntities S0: paying / non-paying 엔티티 통합
	// 위치: internal/s0_entities/
	StageEntities Stage = "S0_ENTITIES"

	// StageUsage S1: 일별 사용량 집계 (dense daily grid)
	// 위치: internal/s1_usage/
	StageUsage Stage = "S1_USAGE"

	// StageSnapshots S2: cadence 스냅샷 생성 + leakage guard
	// 위치: internal/s2_snapshots/
	StageSnapshots Stage = "S2_SNAPSHOTS"

	// StageFeatures S3: rolling window / recency / momentum
	// 위치: internal/s3_features/
	StageFeatures Stage = "S3_FEATURES"

	// StageLabels S4: forward-looking 30일 라벨
	// 위치: internal/s4_labels/
	StageLabels Stage = "S4_LABELS"

	// StageAssembly S5: feature table 조립 및 불변식 검증
	// 위치: internal/s5_assembly/
	StageAssembly Stage = "S5_ASSEMBLY"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageEntities:
		return "S0"
	case StageUsage:
		return "S1"
	case StageSnapshots:
		return "S2"
	case StageFeatures:
		return "S3"
	case StageLabels:
		return "S4"
	case StageAssembly:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageEntities,
		StageUsage,
		StageSnapshots,
		StageFeatures,
		StageLabels,
		StageAssembly,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageResult records the outcome of one stage within a run
type StageResult struct {
	Stage       Stage  `json:"stage"`
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
	Duration    int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}
