package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sealed-ballot/models"
)

// PostgresStore keeps journals in a single table keyed by (election_id, block_index).
type PostgresStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenPostgres connects with gorm and pings the database before returning.
func OpenPostgres(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewPostgresStore(db, logger), nil
}

func NewPostgresStore(db *gorm.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Migrate creates the journal table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&blockModel{})
}

func (s *PostgresStore) Append(ctx context.Context, electionID string, block *models.Block) error {
	if err := checkElectionID(electionID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last []blockModel
		if err := tx.Where("election_id = ?", electionID).
			Order("block_index DESC").
			Limit(1).
			Find(&last).Error; err != nil {
			return err
		}

		var (
			n     uint64
			tip   common.Hash
			tipTS int64
		)
		if len(last) == 1 {
			n = last[0].BlockIndex + 1
			tip = common.HexToHash(last[0].Hash)
			tipTS = last[0].Timestamp
		}
		if err := checkLink(n, tip, tipTS, block); err != nil {
			return err
		}

		row := blockModelFrom(electionID, block)
		return tx.Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: block %d already stored", ErrConflict, block.Index)
		}
		return s.logError("journal_append_failed", err,
			"election_id", electionID,
			"block_index", block.Index,
		)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, electionID string) ([]*models.Block, error) {
	if err := checkElectionID(electionID); err != nil {
		return nil, err
	}

	var rows []blockModel
	if err := s.db.WithContext(ctx).
		Where("election_id = ?", electionID).
		Order("block_index ASC").
		Find(&rows).Error; err != nil {
		return nil, s.logError("journal_load_failed", err, "election_id", electionID)
	}

	blocks := make([]*models.Block, len(rows))
	for i := range rows {
		blocks[i] = rows[i].toBlock()
	}
	return blocks, nil
}

func (s *PostgresStore) Elections(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&blockModel{}).
		Where("block_index = 0").
		Order("created_at ASC").
		Pluck("election_id", &ids).Error; err != nil {
		return nil, s.logError("journal_list_failed", err)
	}
	return ids, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "storage",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("journal operation failed", fields...)
	return err
}

type blockModel struct {
	ElectionID string    `gorm:"column:election_id;primaryKey"`
	BlockIndex uint64    `gorm:"column:block_index;primaryKey;autoIncrement:false"`
	Timestamp  int64     `gorm:"column:timestamp;not null"`
	Data       []byte    `gorm:"column:data;not null"`
	PrevHash   string    `gorm:"column:prev_hash;size:66;not null"`
	Hash       string    `gorm:"column:hash;size:66;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (blockModel) TableName() string {
	return "election_blocks"
}

func blockModelFrom(electionID string, block *models.Block) blockModel {
	return blockModel{
		ElectionID: electionID,
		BlockIndex: block.Index,
		Timestamp:  block.Timestamp,
		Data:       block.Data,
		PrevHash:   block.PrevHash.Hex(),
		Hash:       block.Hash.Hex(),
	}
}

func (m blockModel) toBlock() *models.Block {
	return &models.Block{
		Index:     m.BlockIndex,
		Timestamp: m.Timestamp,
		Data:      m.Data,
		PrevHash:  common.HexToHash(m.PrevHash),
		Hash:      common.HexToHash(m.Hash),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ Journal = (*MemoryStore)(nil)
	_ Journal = (*JSONStore)(nil)
	_ Journal = (*PostgresStore)(nil)
)
