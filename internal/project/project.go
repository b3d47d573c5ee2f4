package project

import (
	stdErrors "errors"

	xerrors "TechHub-Embassy/internal/errors"
)

// Status 表示项目在生命周期中的状态。
type Status string

const (
	StatusDraft          Status = "draft"
	StatusIntakeComplete Status = "intake_complete"
	StatusMatching       Status = "matching"
	StatusMatched        Status = "matched"
	StatusOutlined       Status = "outlined"
	StatusPromoted       Status = "promoted"
	StatusAbandoned      Status = "abandoned"
)

// statusRank 定义生命周期的单调顺序。Abandoned 不参与排序，
// 它是唯一允许的逃逸转移。
var statusRank = map[Status]int{
	StatusDraft:          0,
	StatusIntakeComplete: 1,
	StatusMatching:       2,
	StatusMatched:        3,
	StatusOutlined:       4,
	StatusPromoted:       5,
}

// IsValidStatus 检查给定的项目状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	if status == StatusAbandoned {
		return true
	}
	_, ok := statusRank[status]
	return ok
}

// IsTerminal 判断状态是否为终态。
func IsTerminal(status Status) bool {
	return status == StatusPromoted || status == StatusAbandoned
}

// CanTransition 判断从 from 到 to 的转移是否合法。生命周期只允许
// 沿既定顺序逐级前进，外加从任意非终态进入 Abandoned。
// Matching 失败回退到 IntakeComplete 是唯一的向后转移。
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if IsTerminal(from) {
		return false
	}
	if to == StatusAbandoned {
		return true
	}
	if from == StatusMatching && to == StatusIntakeComplete {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// Transition 记录一次状态变更，项目的历史是只增的。
type Transition struct {
	From  Status `json:"from"`
	To    Status `json:"to"`
	Actor string `json:"actor,omitempty"`
	Note  string `json:"note,omitempty"`
	At    int64  `json:"at"`
}

// Project 描述一个 TechHub 项目。每个被接受的用例恰好创建一个项目，
// 项目持有自身状态转移的完整历史。
type Project struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	Title     string       `json:"title"`
	Status    Status       `json:"status"`
	UseCaseID string       `json:"use_case_id"`
	MatchIDs  []string     `json:"match_ids,omitempty"`
	History   []Transition `json:"history,omitempty"`
	Promoted  bool         `json:"promoted"`
	// Version 用于乐观并发控制，每次写入都会递增。
	Version   int64 `json:"version"`
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Advance 在校验转移合法后变更状态并追加历史记录。
func (p *Project) Advance(to Status, actor, note string, at int64) error {
	if !CanTransition(p.Status, to) {
		return xerrors.New(xerrors.CodeInvalidTransition, "",
			xerrors.WithMetadata("from", string(p.Status)),
			xerrors.WithMetadata("to", string(to)))
	}
	p.History = append(p.History, Transition{
		From:  p.Status,
		To:    to,
		Actor: actor,
		Note:  note,
		At:    at,
	})
	p.Status = to
	p.UpdatedAt = at
	if to == StatusPromoted {
		p.Promoted = true
	}
	return nil
}

// LatestMatchID 返回最近一次追加的匹配 id。
func (p *Project) LatestMatchID() string {
	if len(p.MatchIDs) == 0 {
		return ""
	}
	return p.MatchIDs[len(p.MatchIDs)-1]
}

var (
	// ErrNotFound 表示指定的项目不存在。
	ErrNotFound = xerrors.New(xerrors.CodeNotFound, "project not found")
	// ErrVersionConflict 表示写入时携带的版本已过期。
	ErrVersionConflict = xerrors.New(xerrors.CodeVersionConflict, "project version conflict")
	// ErrConflict 表示项目在当前状态下无法进行所请求的操作。
	ErrConflict = xerrors.New(CodeProjectConflict, "project conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrUseCaseNotFound 表示指定的用例不存在。
	ErrUseCaseNotFound = xerrors.New(xerrors.CodeNotFound, "use case not found")
	// ErrMatchNotFound 表示指定的匹配记录不存在。
	ErrMatchNotFound = xerrors.New(xerrors.CodeNotFound, "resource match not found")
)

const (
	CodeProjectConflict xerrors.Code = "PROJECT_CONFLICT"
	CodeUseCaseFinal    xerrors.Code = "USE_CASE_FINALIZED"
)

func init() {
	xerrors.Register(CodeProjectConflict, xerrors.Attributes{
		Message:   "project conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeUseCaseFinal, xerrors.Attributes{
		Message:   "use case already finalized",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// IsNotFound 判断错误是否为"不存在"。
func IsNotFound(err error) bool {
	return stdErrors.Is(err, ErrNotFound) || stdErrors.Is(err, ErrUseCaseNotFound) || stdErrors.Is(err, ErrMatchNotFound)
}

// IsVersionConflict 判断错误是否为乐观锁冲突。
func IsVersionConflict(err error) bool {
	return stdErrors.Is(err, ErrVersionConflict)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
