// Package export materialises payout and routing reports from the read model.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"gorm.io/gorm"

	"curiochain/services/indexd/models"
)

// Config captures the dependencies required to construct a Reporter.
type Config struct {
	DB        *gorm.DB
	TZ        *time.Location
	OutputDir string
	Now       func() time.Time
	Logger    *slog.Logger
}

// RunOptions specifies overrides when executing a reporting window.
type RunOptions struct {
	Start time.Time
	End   time.Time
}

// Reporter writes per-scope payout summaries plus a routing summary for a
// time window, as CSV and Parquet pairs.
type Reporter struct {
	db        *gorm.DB
	tz        *time.Location
	outputDir string
	now       func() time.Time
	logger    *slog.Logger
}

// New constructs a reporter with sane defaults.
func New(cfg Config) *Reporter {
	tz := cfg.TZ
	if tz == nil {
		tz = time.UTC
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		db:        cfg.DB,
		tz:        tz,
		outputDir: cfg.OutputDir,
		now:       nowFn,
		logger:    logger,
	}
}

// PayoutRow summarises the claims paid to one account within one scope.
type PayoutRow struct {
	Account       string
	Scope         string
	Payments      int
	TotalLamports *big.Int
	ShareOfScope  float64
	FirstPaidAt   time.Time
	LastPaidAt    time.Time
}

// RoutingRow summarises the router settlements of one kind.
type RoutingRow struct {
	Kind         string
	Settlements  int
	Gross        *big.Int
	CreatorPaid  *big.Int
	PoolShare    *big.Int
	PlatformFee  *big.Int
	EcosystemFee *big.Int
}

// ReportFile records one written CSV/Parquet artifact pair.
type ReportFile struct {
	Name        string
	CSVPath     string
	ParquetPath string
	Count       int
}

// Result captures the output of one report run.
type Result struct {
	Start   time.Time
	End     time.Time
	Payouts []*PayoutRow
	Routing []*RoutingRow
	Files   []ReportFile
}

// Run aggregates the window and writes the report files. An empty window
// still produces a result, just with no files.
func (r *Reporter) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("reporter not configured")
	}
	end := opts.End
	if end.IsZero() {
		end = r.now().In(r.tz)
	}
	start := opts.Start
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("report window must end after it starts")
	}

	payouts, err := r.collectPayouts(ctx, start, end)
	if err != nil {
		return nil, err
	}
	routing, err := r.collectRouting(ctx, start, end)
	if err != nil {
		return nil, err
	}

	result := &Result{Start: start, End: end, Payouts: payouts, Routing: routing}
	if len(payouts) == 0 && len(routing) == 0 {
		return result, nil
	}

	runDir := filepath.Join(r.outputDir, fmt.Sprintf("%s_%s", start.Format("20060102"), end.Format("20060102")))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}

	for _, scope := range payoutScopes(payouts) {
		rows := payoutsForScope(payouts, scope)
		name := "payouts_" + slugify(scope)
		csvPath := filepath.Join(runDir, name+".csv")
		if err := writePayoutCSV(csvPath, rows); err != nil {
			return nil, err
		}
		parquetPath := filepath.Join(runDir, name+".parquet")
		if err := writePayoutParquet(parquetPath, rows); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, ReportFile{Name: name, CSVPath: csvPath, ParquetPath: parquetPath, Count: len(rows)})
		r.logger.Info("report written", "file", csvPath, "rows", len(rows))
	}

	if len(routing) > 0 {
		csvPath := filepath.Join(runDir, "routing.csv")
		if err := writeRoutingCSV(csvPath, routing); err != nil {
			return nil, err
		}
		parquetPath := filepath.Join(runDir, "routing.parquet")
		if err := writeRoutingParquet(parquetPath, routing); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, ReportFile{Name: "routing", CSVPath: csvPath, ParquetPath: parquetPath, Count: len(routing)})
		r.logger.Info("report written", "file", csvPath, "rows", len(routing))
	}
	return result, nil
}

func (r *Reporter) collectPayouts(ctx context.Context, start, end time.Time) ([]*PayoutRow, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Where("paid_at >= ? AND paid_at < ?", start.UTC(), end.UTC()).
		Order("paid_at ASC").
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("load payouts: %w", err)
	}

	type groupKey struct {
		account string
		scope   string
	}
	grouped := make(map[groupKey]*PayoutRow)
	scopeTotals := make(map[string]*big.Int)
	for _, payout := range payouts {
		key := groupKey{account: payout.Account, scope: payout.Scope}
		row, ok := grouped[key]
		if !ok {
			row = &PayoutRow{
				Account:       payout.Account,
				Scope:         payout.Scope,
				TotalLamports: big.NewInt(0),
				FirstPaidAt:   payout.PaidAt,
			}
			grouped[key] = row
		}
		amount := parseAmount(payout.Amount)
		row.Payments++
		row.TotalLamports.Add(row.TotalLamports, amount)
		row.LastPaidAt = payout.PaidAt
		total, ok := scopeTotals[payout.Scope]
		if !ok {
			total = big.NewInt(0)
			scopeTotals[payout.Scope] = total
		}
		total.Add(total, amount)
	}

	rows := make([]*PayoutRow, 0, len(grouped))
	for _, row := range grouped {
		row.ShareOfScope = shareOf(row.TotalLamports, scopeTotals[row.Scope])
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Scope != rows[j].Scope {
			return rows[i].Scope < rows[j].Scope
		}
		if cmp := rows[i].TotalLamports.Cmp(rows[j].TotalLamports); cmp != 0 {
			return cmp > 0
		}
		return rows[i].Account < rows[j].Account
	})
	return rows, nil
}

func (r *Reporter) collectRouting(ctx context.Context, start, end time.Time) ([]*RoutingRow, error) {
	var payments []models.RoutedPayment
	err := r.db.WithContext(ctx).
		Where("settled_at >= ? AND settled_at < ?", start.UTC(), end.UTC()).
		Order("settled_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("load routed payments: %w", err)
	}

	grouped := make(map[string]*RoutingRow)
	for _, payment := range payments {
		row, ok := grouped[payment.Kind]
		if !ok {
			row = &RoutingRow{
				Kind:         payment.Kind,
				Gross:        big.NewInt(0),
				CreatorPaid:  big.NewInt(0),
				PoolShare:    big.NewInt(0),
				PlatformFee:  big.NewInt(0),
				EcosystemFee: big.NewInt(0),
			}
			grouped[payment.Kind] = row
		}
		row.Settlements++
		row.Gross.Add(row.Gross, parseAmount(payment.Gross))
		row.CreatorPaid.Add(row.CreatorPaid, parseAmount(payment.CreatorPaid))
		row.PoolShare.Add(row.PoolShare, parseAmount(payment.PoolShare))
		row.PlatformFee.Add(row.PlatformFee, parseAmount(payment.PlatformFee))
		row.EcosystemFee.Add(row.EcosystemFee, parseAmount(payment.EcosystemFee))
	}

	rows := make([]*RoutingRow, 0, len(grouped))
	for _, kind := range []string{models.RoutedKindMint, models.RoutedKindBundle, models.RoutedKindRental, models.RoutedKindSubscription} {
		if row, ok := grouped[kind]; ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func payoutScopes(rows []*PayoutRow) []string {
	seen := make(map[string]bool)
	scopes := make([]string, 0, 4)
	for _, row := range rows {
		if !seen[row.Scope] {
			seen[row.Scope] = true
			scopes = append(scopes, row.Scope)
		}
	}
	sort.Strings(scopes)
	return scopes
}

func payoutsForScope(rows []*PayoutRow, scope string) []*PayoutRow {
	matched := make([]*PayoutRow, 0, len(rows))
	for _, row := range rows {
		if row.Scope == scope {
			matched = append(matched, row)
		}
	}
	return matched
}

func writePayoutCSV(path string, rows []*PayoutRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()
	out := csv.NewWriter(file)
	header := []string{"account", "scope", "payments", "total_lamports", "share_of_scope", "first_paid_at", "last_paid_at"}
	if err := out.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Account,
			row.Scope,
			strconv.Itoa(row.Payments),
			formatAmount(row.TotalLamports),
			fmt.Sprintf("%.6f", row.ShareOfScope),
			row.FirstPaidAt.Format(time.RFC3339),
			row.LastPaidAt.Format(time.RFC3339),
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

type payoutParquetRow struct {
	Account       string  `parquet:"name=account, type=BYTE_ARRAY, convertedtype=UTF8"`
	Scope         string  `parquet:"name=scope, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payments      int32   `parquet:"name=payments, type=INT32"`
	TotalLamports string  `parquet:"name=total_lamports, type=BYTE_ARRAY, convertedtype=UTF8"`
	ShareOfScope  float64 `parquet:"name=share_of_scope, type=DOUBLE"`
	FirstPaidAt   string  `parquet:"name=first_paid_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastPaidAt    string  `parquet:"name=last_paid_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writePayoutParquet(path string, rows []*PayoutRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(payoutParquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &payoutParquetRow{
			Account:       row.Account,
			Scope:         row.Scope,
			Payments:      int32(row.Payments),
			TotalLamports: formatAmount(row.TotalLamports),
			ShareOfScope:  row.ShareOfScope,
			FirstPaidAt:   row.FirstPaidAt.Format(time.RFC3339),
			LastPaidAt:    row.LastPaidAt.Format(time.RFC3339),
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	return nil
}

func writeRoutingCSV(path string, rows []*RoutingRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()
	out := csv.NewWriter(file)
	header := []string{"kind", "settlements", "gross_lamports", "creator_paid", "pool_share", "platform_fee", "ecosystem_fee"}
	if err := out.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Kind,
			strconv.Itoa(row.Settlements),
			formatAmount(row.Gross),
			formatAmount(row.CreatorPaid),
			formatAmount(row.PoolShare),
			formatAmount(row.PlatformFee),
			formatAmount(row.EcosystemFee),
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

type routingParquetRow struct {
	Kind         string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Settlements  int32  `parquet:"name=settlements, type=INT32"`
	Gross        string `parquet:"name=gross_lamports, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatorPaid  string `parquet:"name=creator_paid, type=BYTE_ARRAY, convertedtype=UTF8"`
	PoolShare    string `parquet:"name=pool_share, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlatformFee  string `parquet:"name=platform_fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	EcosystemFee string `parquet:"name=ecosystem_fee, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeRoutingParquet(path string, rows []*RoutingRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(routingParquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &routingParquetRow{
			Kind:         row.Kind,
			Settlements:  int32(row.Settlements),
			Gross:        formatAmount(row.Gross),
			CreatorPaid:  formatAmount(row.CreatorPaid),
			PoolShare:    formatAmount(row.PoolShare),
			PlatformFee:  formatAmount(row.PlatformFee),
			EcosystemFee: formatAmount(row.EcosystemFee),
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	return nil
}

func parseAmount(raw string) *big.Int {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return big.NewInt(0)
	}
	return value
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func shareOf(part, whole *big.Int) float64 {
	if part == nil || whole == nil || whole.Sign() <= 0 {
		return 0
	}
	ratio, _ := new(big.Rat).SetFrac(part, whole).Float64()
	return ratio
}

func slugify(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}
	cleaned := make([]rune, 0, len(trimmed))
	for _, r := range trimmed {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			cleaned = append(cleaned, r)
		case r == ' ' || r == '/' || r == ':':
			cleaned = append(cleaned, '-')
		}
	}
	return strings.Trim(string(cleaned), "-")
}
