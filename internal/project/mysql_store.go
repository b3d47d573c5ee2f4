package project

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// MySQLOptions 控制连接池参数，零值使用默认配置。
type MySQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (o *MySQLOptions) applyDefaults() {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 20
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 10
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 10 * time.Minute
	}
}

// MySQLStore 使用 MySQL 持久化项目状态。写入通过
// `WHERE version = ?` 实现乐观锁。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(dsn string, opts MySQLOptions) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	opts.applyDefaults()
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS embassy_projects (
        id VARCHAR(64) PRIMARY KEY,
        owner_id VARCHAR(64) NOT NULL DEFAULT '',
        title VARCHAR(255) NOT NULL DEFAULT '',
        status VARCHAR(32) NOT NULL,
        use_case_id VARCHAR(64) NOT NULL DEFAULT '',
        match_ids TEXT,
        history TEXT,
        promoted TINYINT(1) NOT NULL DEFAULT 0,
        version BIGINT NOT NULL DEFAULT 1,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        INDEX idx_project_status (status),
        INDEX idx_project_owner (owner_id),
        INDEX idx_project_updated (updated_at)
)`,
		`CREATE TABLE IF NOT EXISTS embassy_use_cases (
        id VARCHAR(64) PRIMARY KEY,
        rev INT NOT NULL DEFAULT 1,
        revision_of VARCHAR(64) NOT NULL DEFAULT '',
        submitter_id VARCHAR(64) NOT NULL DEFAULT '',
        payload TEXT NOT NULL,
        finalized TINYINT(1) NOT NULL DEFAULT 0,
        created_at BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS embassy_matches (
        id VARCHAR(64) PRIMARY KEY,
        project_id VARCHAR(64) NOT NULL,
        use_case_id VARCHAR(64) NOT NULL DEFAULT '',
        payload TEXT NOT NULL,
        created_at BIGINT NOT NULL,
        INDEX idx_match_project (project_id)
)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化项目表失败")
		}
	}
	return nil
}

// CreateProject 插入新的项目记录。
func (s *MySQLStore) CreateProject(ctx context.Context, p *Project) error {
	if p == nil {
		return xerrors.New(xerrors.CodeValidation, "project 不能为空")
	}
	if strings.TrimSpace(p.ID) == "" {
		return xerrors.New(xerrors.CodeValidation, "项目 ID 不能为空")
	}

	now := time.Now().Unix()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Version == 0 {
		p.Version = 1
	}

	matchIDs, err := marshalJSONColumn(p.MatchIDs)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeValidation, err, "编码 match_ids 失败")
	}
	history, err := marshalJSONColumn(p.History)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeValidation, err, "编码项目历史失败")
	}

	const stmt = `INSERT INTO embassy_projects
        (id, owner_id, title, status, use_case_id, match_ids, history, promoted, version, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		p.ID,
		p.OwnerID,
		p.Title,
		string(p.Status),
		p.UseCaseID,
		matchIDs,
		history,
		p.Promoted,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入项目失败")
	}
	return nil
}

// Load 查询指定项目。
func (s *MySQLStore) Load(ctx context.Context, id string) (*Project, error) {
	const stmt = `SELECT id, owner_id, title, status, use_case_id, match_ids, history, promoted, version, created_at, updated_at
        FROM embassy_projects WHERE id = ?`

	return scanProject(s.db.QueryRowContext(ctx, stmt, id))
}

// Save 按乐观锁语义写入项目，版本不匹配时返回 ErrVersionConflict。
func (s *MySQLStore) Save(ctx context.Context, p *Project, expectedVersion int64) (*Project, error) {
	if p == nil {
		return nil, xerrors.New(xerrors.CodeValidation, "project 不能为空")
	}

	matchIDs, err := marshalJSONColumn(p.MatchIDs)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeValidation, err, "编码 match_ids 失败")
	}
	history, err := marshalJSONColumn(p.History)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeValidation, err, "编码项目历史失败")
	}

	const stmt = `UPDATE embassy_projects
        SET owner_id = ?, title = ?, status = ?, use_case_id = ?, match_ids = ?, history = ?, promoted = ?,
            version = version + 1, updated_at = ?
        WHERE id = ? AND version = ?`

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, stmt,
		p.OwnerID,
		p.Title,
		string(p.Status),
		p.UseCaseID,
		matchIDs,
		history,
		p.Promoted,
		now,
		p.ID,
		expectedVersion,
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新项目失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	if affected == 0 {
		if _, getErr := s.Load(ctx, p.ID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrVersionConflict
	}
	return s.Load(ctx, p.ID)
}

// AppendMatch 在事务中保存匹配记录并链接到项目。
func (s *MySQLStore) AppendMatch(ctx context.Context, projectID string, match *ResourceMatch, expectedVersion int64) (*Project, error) {
	if match == nil || strings.TrimSpace(match.ID) == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "匹配记录不能为空")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启事务失败")
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := scanProject(tx.QueryRowContext(ctx,
		`SELECT id, owner_id, title, status, use_case_id, match_ids, history, promoted, version, created_at, updated_at
        FROM embassy_projects WHERE id = ? FOR UPDATE`, projectID))
	if err != nil {
		return nil, err
	}
	if stored.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	record := cloneMatch(match)
	record.ProjectID = projectID
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeValidation, err, "编码匹配记录失败")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO embassy_matches (id, project_id, use_case_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.ProjectID, record.UseCaseID, string(payload), record.CreatedAt,
	); err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, ErrConflict
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入匹配记录失败")
	}

	stored.MatchIDs = append(stored.MatchIDs, record.ID)
	matchIDs, err := marshalJSONColumn(stored.MatchIDs)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeValidation, err, "编码 match_ids 失败")
	}
	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE embassy_projects SET match_ids = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		matchIDs, now, projectID, expectedVersion,
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新项目匹配列表失败")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交事务失败")
	}
	return s.Load(ctx, projectID)
}

// PutUseCase 保存用例，已定稿的用例拒绝覆盖。
func (s *MySQLStore) PutUseCase(ctx context.Context, uc *UseCase) error {
	if uc == nil || strings.TrimSpace(uc.ID) == "" {
		return xerrors.New(xerrors.CodeValidation, "用例 ID 不能为空")
	}
	if uc.CreatedAt == 0 {
		uc.CreatedAt = time.Now().Unix()
	}

	var finalized bool
	err := s.db.QueryRowContext(ctx, `SELECT finalized FROM embassy_use_cases WHERE id = ?`, uc.ID).Scan(&finalized)
	switch {
	case err == nil:
		if finalized {
			return xerrors.New(CodeUseCaseFinal, "")
		}
	case stdErrors.Is(err, sql.ErrNoRows):
	default:
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询用例失败")
	}

	payload, err := json.Marshal(uc)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeValidation, err, "编码用例失败")
	}

	const stmt = `INSERT INTO embassy_use_cases (id, rev, revision_of, submitter_id, payload, finalized, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE rev = VALUES(rev), revision_of = VALUES(revision_of),
            submitter_id = VALUES(submitter_id), payload = VALUES(payload), finalized = VALUES(finalized)`

	if _, err := s.db.ExecContext(ctx, stmt,
		uc.ID, uc.Rev, uc.RevisionOf, uc.SubmitterID, string(payload), uc.Finalized, uc.CreatedAt,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存用例失败")
	}
	return nil
}

// GetUseCase 返回用例。
func (s *MySQLStore) GetUseCase(ctx context.Context, id string) (*UseCase, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM embassy_use_cases WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrUseCaseNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询用例失败")
	}
	var uc UseCase
	if err := json.Unmarshal([]byte(payload), &uc); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析用例失败")
	}
	return &uc, nil
}

// GetMatch 返回匹配记录。
func (s *MySQLStore) GetMatch(ctx context.Context, id string) (*ResourceMatch, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM embassy_matches WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询匹配记录失败")
	}
	var match ResourceMatch
	if err := json.Unmarshal([]byte(payload), &match); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析匹配记录失败")
	}
	return &match, nil
}

// ListMatches 按创建顺序返回项目的匹配记录。
func (s *MySQLStore) ListMatches(ctx context.Context, projectID string) ([]*ResourceMatch, error) {
	if _, err := s.Load(ctx, projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM embassy_matches WHERE project_id = ? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询匹配列表失败")
	}
	defer rows.Close()

	var results []*ResourceMatch
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析匹配记录失败")
		}
		var match ResourceMatch
		if err := json.Unmarshal([]byte(payload), &match); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析匹配记录失败")
		}
		results = append(results, &match)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历匹配记录失败")
	}
	return results, nil
}

// List 返回符合过滤条件的项目列表。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Project, error) {
	opts.applyDefaults()

	query := `SELECT id, owner_id, title, status, use_case_id, match_ids, history, promoted, version, created_at, updated_at
        FROM embassy_projects`

	clause, filterArgs := buildProjectFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}

	order := " ORDER BY updated_at DESC, id ASC"
	if opts.Order == SortByUpdatedAsc {
		order = " ORDER BY updated_at ASC, id ASC"
	}
	query += order + " LIMIT ? OFFSET ?"

	args := append(filterArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询项目列表失败")
	}
	defer rows.Close()

	projects := make([]*Project, 0, opts.Limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历项目失败")
	}
	return projects, nil
}

// Stats 返回符合过滤条件的项目聚合信息。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (Stats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*) AS total,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS draft,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS intake_complete,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS matching,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS matched,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS outlined,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS promoted,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS abandoned,
        COALESCE(MIN(updated_at), 0) AS oldest,
        COALESCE(MAX(updated_at), 0) AS newest
        FROM embassy_projects`

	clause, filterArgs := buildProjectFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}

	args := []any{
		string(StatusDraft), string(StatusIntakeComplete), string(StatusMatching),
		string(StatusMatched), string(StatusOutlined), string(StatusPromoted), string(StatusAbandoned),
	}
	args = append(args, filterArgs...)

	row := s.db.QueryRowContext(ctx, query, args...)

	var stats Stats
	if err := row.Scan(
		&stats.Total,
		&stats.Draft,
		&stats.IntakeComplete,
		&stats.Matching,
		&stats.Matched,
		&stats.Outlined,
		&stats.Promoted,
		&stats.Abandoned,
		&stats.OldestUpdatedAt,
		&stats.NewestUpdatedAt,
	); err != nil {
		return Stats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询项目统计失败")
	}
	if stats.Total == 0 {
		stats.OldestUpdatedAt = 0
		stats.NewestUpdatedAt = 0
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var status string
	var matchIDs, history sql.NullString
	if err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Title,
		&status,
		&p.UseCaseID,
		&matchIDs,
		&history,
		&p.Promoted,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析项目记录失败")
	}
	p.Status = Status(status)
	if err := unmarshalJSONColumn(matchIDs, &p.MatchIDs); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析 match_ids 失败")
	}
	if err := unmarshalJSONColumn(history, &p.History); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析项目历史失败")
	}
	return &p, nil
}

func marshalJSONColumn(value any) (sql.NullString, error) {
	bytes, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, err
	}
	text := string(bytes)
	if text == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: text, Valid: true}, nil
}

func unmarshalJSONColumn(raw sql.NullString, dest any) error {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dest)
}

func buildProjectFilterClause(opts ListOptions) (string, []any) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, 0, len(opts.Statuses))
		for range opts.Statuses {
			placeholders = append(placeholders, "?")
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
		for _, status := range opts.Statuses {
			args = append(args, string(status))
		}
	}
	if opts.Owner != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, opts.Owner)
	}
	if opts.UpdatedGTE > 0 {
		conditions = append(conditions, "updated_at >= ?")
		args = append(args, opts.UpdatedGTE)
	}
	if opts.UpdatedLTE > 0 {
		conditions = append(conditions, "updated_at <= ?")
		args = append(args, opts.UpdatedLTE)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " AND "), args
}

var _ Store = (*MySQLStore)(nil)
