// cleanup.go — сервис фоновой очистки локальных данных.
//
// Очистка выполняет две задачи:
//  1. Удаляет из временного каталога локальные копии документов
//     с истёкшим TTL (VM_TMP_TTL)
//  2. Удаляет завершённые журнальные записи старше срока хранения
//     (VM_JOURNAL_RETENTION); pending записи не трогаются
//  3. Выселяет из реестра вытесненные документы, неактивные дольше
//     срока хранения журнала
//
// Запускается как горутина с периодическим тикером (VM_CLEANUP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avinashDevlop/AgriLinkProject/internal/intake"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/journal"
)

// Prometheus метрики очистки
var (
	// cleanupRunsTotal — количество запусков очистки.
	cleanupRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_cleanup_runs_total",
		Help: "Общее количество запусков фоновой очистки",
	})

	// cleanupTmpDeletedTotal — количество удалённых временных файлов.
	cleanupTmpDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_cleanup_tmp_deleted_total",
		Help: "Общее количество временных файлов, удалённых очисткой",
	})

	// cleanupJournalDeletedTotal — количество удалённых журнальных записей.
	cleanupJournalDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_cleanup_journal_deleted_total",
		Help: "Общее количество журнальных записей, удалённых очисткой",
	})

	// cleanupDocsDeletedTotal — количество документов, выселенных из реестра.
	cleanupDocsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_cleanup_docs_deleted_total",
		Help: "Общее количество вытесненных документов, выселенных из реестра очисткой",
	})

	// cleanupDurationSeconds — длительность выполнения очистки.
	cleanupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vm_cleanup_duration_seconds",
		Help:    "Длительность выполнения фоновой очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// CleanupResult — результат одного запуска очистки.
type CleanupResult struct {
	// TmpDeleted — количество удалённых временных файлов
	TmpDeleted int
	// JournalDeleted — количество удалённых журнальных записей
	JournalDeleted int
	// DocsDeleted — количество документов, выселенных из реестра
	DocsDeleted int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// CleanupService — сервис фоновой очистки.
type CleanupService struct {
	in               *intake.Intake
	jrn              *journal.Journal
	reg              *Registry
	tmpTTL           time.Duration
	journalRetention time.Duration
	interval         time.Duration
	logger           *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewCleanupService создаёт сервис очистки.
func NewCleanupService(
	in *intake.Intake,
	jrn *journal.Journal,
	reg *Registry,
	tmpTTL time.Duration,
	journalRetention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupService {
	return &CleanupService{
		in:               in,
		jrn:              jrn,
		reg:              reg,
		tmpTTL:           tmpTTL,
		journalRetention: journalRetention,
		interval:         interval,
		logger:           logger.With(slog.String("component", "cleanup")),
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (c *CleanupService) Start(ctx context.Context) {
	cleanCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(cleanCtx)

	c.logger.Info("Очистка запущена",
		slog.String("interval", c.interval.String()),
		slog.String("tmp_ttl", c.tmpTTL.String()),
		slog.String("journal_retention", c.journalRetention.String()),
	)
}

// Stop останавливает фоновый процесс очистки.
func (c *CleanupService) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (c *CleanupService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	c.RunOnce()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (c *CleanupService) RunOnce() *CleanupResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	result := &CleanupResult{}

	c.logger.Debug("Очистка начата")

	// Фаза 1: временные копии с истёкшим TTL
	tmpDeleted, errs := c.cleanTmpDir(time.Now().Add(-c.tmpTTL))
	result.TmpDeleted = tmpDeleted
	result.Errors += errs

	// Фаза 2: завершённые журнальные записи старше срока хранения
	journalDeleted, err := c.jrn.CleanFinished(c.journalRetention)
	if err != nil {
		c.logger.Error("Очистка журнала не выполнена",
			slog.String("error", err.Error()),
		)
		result.Errors++
	}
	result.JournalDeleted = journalDeleted

	// Фаза 3: вытесненные документы в реестре
	if c.reg != nil {
		result.DocsDeleted = c.reg.CleanFinished(c.journalRetention)
	}

	result.Duration = time.Since(start)

	cleanupRunsTotal.Inc()
	cleanupTmpDeletedTotal.Add(float64(result.TmpDeleted))
	cleanupJournalDeletedTotal.Add(float64(result.JournalDeleted))
	cleanupDocsDeletedTotal.Add(float64(result.DocsDeleted))
	cleanupDurationSeconds.Observe(result.Duration.Seconds())

	c.logger.Info("Очистка завершена",
		slog.Int("tmp_deleted", result.TmpDeleted),
		slog.Int("journal_deleted", result.JournalDeleted),
		slog.Int("docs_deleted", result.DocsDeleted),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// cleanTmpDir удаляет из временного каталога файлы старше cutoff.
func (c *CleanupService) cleanTmpDir(cutoff time.Time) (deleted, errs int) {
	entries, err := os.ReadDir(c.in.TmpDir())
	if err != nil {
		c.logger.Error("Чтение временного каталога не выполнено",
			slog.String("error", err.Error()),
		)
		return 0, 1
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs++
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(c.in.TmpDir(), entry.Name())
		if err := os.Remove(path); err != nil {
			c.logger.Error("Удаление временного файла не выполнено",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			errs++
			continue
		}

		c.logger.Debug("Временный файл удалён",
			slog.String("path", path),
		)
		deleted++
	}

	return deleted, errs
}
