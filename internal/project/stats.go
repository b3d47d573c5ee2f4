package project

// Stats 聚合了项目生命周期状态的统计信息，常用于仪表盘或健康检查。
type Stats struct {
	Total           int   `json:"total"`
	Draft           int   `json:"draft"`
	IntakeComplete  int   `json:"intake_complete"`
	Matching        int   `json:"matching"`
	Matched         int   `json:"matched"`
	Outlined        int   `json:"outlined"`
	Promoted        int   `json:"promoted"`
	Abandoned       int   `json:"abandoned"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

func (s *Stats) count(status Status) {
	s.Total++
	switch status {
	case StatusDraft:
		s.Draft++
	case StatusIntakeComplete:
		s.IntakeComplete++
	case StatusMatching:
		s.Matching++
	case StatusMatched:
		s.Matched++
	case StatusOutlined:
		s.Outlined++
	case StatusPromoted:
		s.Promoted++
	case StatusAbandoned:
		s.Abandoned++
	}
}
