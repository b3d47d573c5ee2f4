package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"TechHub-Embassy/internal/catalog"
	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/observability/metrics"
	"TechHub-Embassy/internal/orchestrator"
	"TechHub-Embassy/internal/project"
)

// Dispatcher 定义了服务所需的编排能力。
type Dispatcher interface {
	Handle(ctx context.Context, ev orchestrator.Event) (*orchestrator.Outcome, error)
}

// Server 负责暴露 REST 接口，供会话层驱动项目工作流。
type Server struct {
	addr       string
	dispatcher Dispatcher
	store      project.Store
	index      *catalog.Index
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, dispatcher Dispatcher, store project.Store, index *catalog.Index) *Server {
	return &Server{addr: addr, dispatcher: dispatcher, store: store, index: index}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/events", observed("events", s.handleEvent))
	mux.HandleFunc("GET /api/v1/projects", observed("projects", s.handleListProjects))
	mux.HandleFunc("GET /api/v1/projects/stats", observed("project_stats", s.handleStats))
	mux.HandleFunc("GET /api/v1/projects/{id}", observed("project_detail", s.handleProjectDetail))
	mux.HandleFunc("GET /api/v1/projects/{id}/matches", observed("project_matches", s.handleProjectMatches))
	mux.HandleFunc("GET /api/v1/catalog", observed("catalog", s.handleCatalog))
	mux.HandleFunc("GET /healthz", observed("healthz", s.handleHealthz))
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// handleEvent 接收入站事件并同步返回处理结果。工作流层面的失败
// （如 NO_MATCH_FOUND）体现在结果的 code 字段里，HTTP 层仍是 200。
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "编排器未初始化"))
		return
	}

	var ev orchestrator.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeValidation, err, "请求体解析失败"))
		return
	}

	outcome, err := s.dispatcher.Handle(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	projects, err := s.store.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.store.Stats(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleProjectDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeValidation, "缺少项目 ID"))
		return
	}
	p, err := s.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProjectMatches(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeValidation, "缺少项目 ID"))
		return
	}
	matches, err := s.store.ListMatches(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if matches == nil {
		matches = []*project.ResourceMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "目录索引未初始化"))
		return
	}
	snapshot := s.index.Snapshot()

	if raw := r.URL.Query().Get("category"); raw != "" {
		category, ok := catalog.ParseCategory(raw)
		if !ok {
			writeError(w, xerrors.New(xerrors.CodeValidation, "未知的目录类目"))
			return
		}
		writeJSON(w, http.StatusOK, snapshot.Entries(category))
		return
	}
	writeJSON(w, http.StatusOK, snapshot.All())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func listOptionsFromQuery(r *http.Request) (project.ListOptions, error) {
	var opts []project.ListOption
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return project.ListOptions{}, xerrors.New(xerrors.CodeValidation, "limit 参数不合法")
		}
		opts = append(opts, project.WithLimit(parsed))
	}
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return project.ListOptions{}, xerrors.New(xerrors.CodeValidation, "offset 参数不合法")
		}
		opts = append(opts, project.WithOffset(parsed))
	}
	if statuses, ok := query["status"]; ok {
		parsed := make([]project.Status, 0, len(statuses))
		for _, raw := range statuses {
			status := project.Status(raw)
			if !project.IsValidStatus(status) {
				return project.ListOptions{}, xerrors.New(xerrors.CodeValidation, "status 参数不合法")
			}
			parsed = append(parsed, status)
		}
		opts = append(opts, project.WithStatuses(parsed...))
	}
	if owner := query.Get("owner"); owner != "" {
		opts = append(opts, project.WithOwner(owner))
	}
	if query.Get("order") == "asc" {
		opts = append(opts, project.WithSortOrder(project.SortByUpdatedAsc))
	}

	return project.BuildListOptions(opts), nil
}

type errorBody struct {
	Code    xerrors.Code `json:"code"`
	Message string       `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	message := err.Error()
	if domainErr, ok := xerrors.From(err); ok {
		message = domainErr.Message()
		if message == "" {
			message = xerrors.AttributesOf(code).Message
		}
	}
	writeJSON(w, statusFor(code), errorResponse{Error: errorBody{Code: code, Message: message}})
}

// statusFor 将领域错误码映射为 HTTP 状态码。
func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeValidation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeVersionConflict, xerrors.CodeConcurrentModification,
		xerrors.CodeProjectBusy, xerrors.CodeInvalidTransition:
		return http.StatusConflict
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// observed 包装处理函数，记录请求量、错误与延迟指标。
func observed(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
