package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tablecore "github.com/theory-cloud/tabletheory/pkg/core"
	tableerrors "github.com/theory-cloud/tabletheory/pkg/errors"

	"github.com/theory-cloud/sfntasks/pkg/observability"
)

const defaultTableName = "sfntasks-definitions"

var (
	tableNameMu       sync.RWMutex
	tableNameOverride string
)

// definitionItem is the DynamoDB representation of a Record. Items for one state
// machine share a partition; the sort key carries the version.
type definitionItem struct {
	_ struct{} `theorydb:"naming:snake_case"`

	CreatedAt time.Time `json:"created_at" theorydb:"created_at"`

	PartitionKey    string `json:"partition_key" theorydb:"pk,attr:pk"`
	SortKey         string `json:"sort_key" theorydb:"sk,attr:sk"`
	Name            string `json:"name"`
	Version         string `json:"version"`
	StateMachineArn string `json:"state_machine_arn,omitempty" theorydb:"omitempty"`
	Comment         string `json:"comment,omitempty" theorydb:"omitempty"`
	Definition      string `json:"definition"`
	Policy          string `json:"policy,omitempty" theorydb:"omitempty"`

	Tasks []string          `json:"tasks,omitempty" theorydb:"omitempty"`
	Tags  map[string]string `json:"tags,omitempty" theorydb:"omitempty"`
}

func (definitionItem) TableName() string {
	tableNameMu.RLock()
	override := tableNameOverride
	tableNameMu.RUnlock()
	if override != "" {
		return override
	}
	if name := os.Getenv("SFNTASKS_REGISTRY_TABLE"); name != "" {
		return name
	}
	return defaultTableName
}

// setTableNameOverride pins the table name for the process lifetime; TableTheory
// caches model metadata so it cannot change once set.
func setTableNameOverride(tableName string) error {
	if tableName == "" {
		return nil
	}

	tableNameMu.Lock()
	defer tableNameMu.Unlock()

	if tableNameOverride != "" && tableNameOverride != tableName {
		return fmt.Errorf("registry: table name already set to %q (cannot change to %q)", tableNameOverride, tableName)
	}
	tableNameOverride = tableName
	return nil
}

func partitionKey(name string) string { return "statemachine#" + name }
func sortKey(version string) string   { return "version#" + version }

// DynamoConfig configures a DynamoStore. Zero values select defaults.
type DynamoConfig struct {
	TableName      string
	RetryAttempts  int
	RetryBaseDelay time.Duration
	IDs            IDGenerator
	Logger         observability.StructuredLogger
}

// DynamoStore implements Store on DynamoDB through TableTheory.
type DynamoStore struct {
	db     tablecore.DB
	config DynamoConfig
	now    func() time.Time
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(db tablecore.DB, config DynamoConfig) (*DynamoStore, error) {
	if db == nil {
		return nil, fmt.Errorf("registry: db cannot be nil")
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 100 * time.Millisecond
	}
	if config.IDs == nil {
		config.IDs = ULIDs
	}
	config.Logger = observability.OrNoOp(config.Logger)

	if err := setTableNameOverride(config.TableName); err != nil {
		return nil, err
	}
	config.TableName = definitionItem{}.TableName()

	return &DynamoStore{db: db, config: config, now: time.Now}, nil
}

func (d *DynamoStore) Put(ctx context.Context, rec *Record) (string, error) {
	if err := prepareRecord(rec, d.config.IDs, d.now()); err != nil {
		return "", err
	}
	item := toItem(rec)

	var lastErr error
	for attempt := 0; attempt <= d.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := d.config.RetryBaseDelay * time.Duration(1<<min(attempt-1, 10))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		err := d.db.Model(item).WithContext(ctx).IfNotExists().Create()
		if err == nil {
			d.config.Logger.WithStateMachine(rec.Name).Info("registry.put", map[string]any{"version": rec.Version, "table": d.config.TableName})
			return rec.Version, nil
		}
		if tableerrors.IsConditionFailed(err) {
			return "", fmt.Errorf("registry: version %s of %s already exists", rec.Version, rec.Name)
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
		d.config.Logger.Warn("registry.put_retry", map[string]any{"attempt": attempt + 1, "error": err})
	}
	return "", fmt.Errorf("registry: put %s after %d attempts: %w", rec.Name, d.config.RetryAttempts+1, lastErr)
}

func (d *DynamoStore) Get(ctx context.Context, name, version string) (*Record, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if version, err = validateVersion(version); err != nil {
		return nil, err
	}

	var out definitionItem
	err = d.db.Model(&definitionItem{}).
		WithContext(ctx).
		Where("PartitionKey", "=", partitionKey(name)).
		Where("SortKey", "=", sortKey(version)).
		First(&out)
	if err != nil {
		if tableerrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, name, version)
		}
		return nil, fmt.Errorf("registry: get %s@%s: %w", name, version, err)
	}
	return fromItem(&out), nil
}

func (d *DynamoStore) Latest(ctx context.Context, name string) (*Record, error) {
	out, err := d.List(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return out[0], nil
}

func (d *DynamoStore) List(ctx context.Context, name string, limit int) ([]*Record, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	var items []definitionItem
	_, err = d.db.Model(&definitionItem{}).
		WithContext(ctx).
		Where("PartitionKey", "=", partitionKey(name)).
		OrderBy("SortKey", "DESC").
		Limit(normalizeLimit(limit)).
		AllPaginated(&items)
	if err != nil {
		return nil, fmt.Errorf("registry: list %s: %w", name, err)
	}

	out := make([]*Record, 0, len(items))
	for i := range items {
		out = append(out, fromItem(&items[i]))
	}
	return out, nil
}

func (d *DynamoStore) Delete(ctx context.Context, name, version string) error {
	rec, err := d.Get(ctx, name, version)
	if err != nil {
		return err
	}

	err = d.db.Model(&definitionItem{}).
		WithContext(ctx).
		Where("PartitionKey", "=", partitionKey(rec.Name)).
		Where("SortKey", "=", sortKey(rec.Version)).
		Delete()
	if err != nil {
		return fmt.Errorf("registry: delete %s@%s: %w", rec.Name, rec.Version, err)
	}
	return nil
}

func toItem(rec *Record) *definitionItem {
	return &definitionItem{
		CreatedAt:       rec.CreatedAt,
		PartitionKey:    partitionKey(rec.Name),
		SortKey:         sortKey(rec.Version),
		Name:            rec.Name,
		Version:         rec.Version,
		StateMachineArn: rec.StateMachineArn,
		Comment:         rec.Comment,
		Definition:      string(rec.Definition),
		Policy:          string(rec.Policy),
		Tasks:           append([]string(nil), rec.Tasks...),
		Tags:            rec.Tags,
	}
}

func fromItem(item *definitionItem) *Record {
	rec := &Record{
		Name:            item.Name,
		Version:         item.Version,
		Definition:      []byte(item.Definition),
		StateMachineArn: item.StateMachineArn,
		Comment:         item.Comment,
		Tasks:           item.Tasks,
		Tags:            item.Tags,
		CreatedAt:       item.CreatedAt,
	}
	if item.Policy != "" {
		rec.Policy = []byte(item.Policy)
	}
	return rec
}

// isRetryableError reports throttling and transient service errors. TableTheory wraps
// AWS SDK errors, so matching on the error text is the portable check.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{
		"ProvisionedThroughputExceededException",
		"ThrottlingException",
		"RequestLimitExceeded",
		"ServiceUnavailable",
		"InternalServerError",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
