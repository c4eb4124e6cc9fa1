// Package storage хранит вложения заявок на afero.Fs
// (OsFs в проде, MemMapFs в тестах) и собирает zip-архив при отправке.
package storage

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

type Storage struct {
	fs      afero.Fs
	baseURL string
	logger  *zap.Logger
}

// New fs уже должна указывать на корень хранилища (afero.NewBasePathFs)
func New(fs afero.Fs, baseURL string, logger *zap.Logger) *Storage {
	return &Storage{
		fs:      fs,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("storage"),
	}
}

// NewOS хранилище на диске под basePath
func NewOS(basePath, baseURL string, logger *zap.Logger) (*Storage, error) {
	if err := afero.NewOsFs().MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base path: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), basePath), baseURL, logger), nil
}

func ownerDir(ownerID int64) string {
	return path.Join("registration", strconv.FormatInt(ownerID, 10))
}

// Save сохраняет содержимое под уникальным именем и возвращает описание файла
func (s *Storage) Save(ownerID int64, group, name string, r io.Reader) (*domain.File, error) {
	name = cleanName(name)
	id := uuid.NewString()
	dir := ownerDir(ownerID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}
	p := path.Join(dir, id+"-"+name)

	// первые байты нужны для определения типа
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	head = head[:n]

	f, err := s.fs.Create(p)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", p, err)
	}
	defer f.Close()

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		_ = s.fs.Remove(p)
		return nil, fmt.Errorf("storage: write %s: %w", p, err)
	}

	return &domain.File{
		ID:              id,
		OwnerID:         ownerID,
		Group:           group,
		Name:            name,
		Path:            p,
		MimeType:        http.DetectContentType(head),
		Size:            size,
		CreateTimestamp: time.Now(),
	}, nil
}

// Remove удаляет файл. Отсутствующий файл не ошибка.
func (s *Storage) Remove(f *domain.File) error {
	err := s.fs.Remove(f.Path)
	if err != nil {
		if exists, _ := afero.Exists(s.fs, f.Path); exists {
			return fmt.Errorf("storage: remove %s: %w", f.Path, err)
		}
	}
	return nil
}

// URL публичная ссылка на файл
func (s *Storage) URL(f *domain.File) string {
	return s.baseURL + "/" + f.Path
}

// CreateZip упаковывает файлы в архив name и сохраняет его в группе zipArchive.
// Каждый файл кладется в архив как "<группа> - <имя>".
func (s *Storage) CreateZip(ownerID int64, name string, files []*domain.File) (*domain.File, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		if err := s.addToZip(zw, f); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("storage: finalize zip: %w", err)
	}

	zf, err := s.Save(ownerID, domain.FileGroupZipArchive, name, &buf)
	if err != nil {
		return nil, err
	}
	zf.MimeType = "application/zip"

	s.logger.Info("zip archive created",
		zap.Int64("owner_id", ownerID),
		zap.String("name", zf.Name),
		zap.Int("files", len(files)),
		zap.Int64("size", zf.Size))
	return zf, nil
}

func (s *Storage) addToZip(zw *zip.Writer, f *domain.File) error {
	src, err := s.fs.Open(f.Path)
	if err != nil {
		return fmt.Errorf("storage: zip open %s: %w", f.Path, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.Group + " - " + f.Name,
		Method:   zip.Deflate,
		Modified: f.CreateTimestamp,
	})
	if err != nil {
		return fmt.Errorf("storage: zip header %s: %w", f.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("storage: zip copy %s: %w", f.Name, err)
	}
	return nil
}

// cleanName оставляет только базовое имя без разделителей пути
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
