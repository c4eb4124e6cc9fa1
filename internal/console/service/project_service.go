package service

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

// ProjectService чтение проектов с кэшем в памяти.
// Проекты меняются редко, а правила приема нужны на каждом запросе к заявке.
type ProjectService struct {
	repo   ProjectRepository
	cache  *gocache.Cache
	logger *zap.Logger
}

func NewProjectService(repo ProjectRepository, ttl time.Duration, logger *zap.Logger) *ProjectService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ProjectService{
		repo:   repo,
		cache:  gocache.New(ttl, 10*ttl),
		logger: logger.Named("project-service"),
	}
}

func projectKey(id int64) string {
	return "project:" + strconv.FormatInt(id, 10)
}

// Get возвращает проект из кэша или из хранилища.
// Результат разделяется между запросами и не должен изменяться.
func (s *ProjectService) Get(ctx context.Context, id int64) (*domain.Project, error) {
	if v, found := s.cache.Get(projectKey(id)); found {
		if p, ok := v.(*domain.Project); ok {
			return p, nil
		}
		s.logger.Error("wrong type in project cache", zap.Int64("project_id", id))
	}

	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(projectKey(id), p)
	return p, nil
}

// Invalidate сбрасывает проект после изменения правил приема
func (s *ProjectService) Invalidate(id int64) {
	s.cache.Delete(projectKey(id))
}

// Flush сбрасывает весь кэш, например после потери подписки на изменения
func (s *ProjectService) Flush() {
	s.cache.Flush()
}
