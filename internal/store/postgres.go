package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// weight snapshots and limit-order sets are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Index settings ---

func (s *PostgresStore) ListIndexSettings(ctx context.Context) ([]model.IndexSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, asset_id, asset_pair_id,
		        sell_markup::TEXT, buy_volume::TEXT, sell_volume::TEXT,
		        buy_limit_orders_count, sell_limit_orders_count, alpha::TEXT
		 FROM index_settings ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IndexSettings
	for rows.Next() {
		v, err := scanIndexSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetIndexSettings(ctx context.Context, name string) (*model.IndexSettings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT name, asset_id, asset_pair_id,
		        sell_markup::TEXT, buy_volume::TEXT, sell_volume::TEXT,
		        buy_limit_orders_count, sell_limit_orders_count, alpha::TEXT
		 FROM index_settings WHERE name = $1`, name)
	v, err := scanIndexSettings(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *PostgresStore) UpsertIndexSettings(ctx context.Context, settings model.IndexSettings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO index_settings
		   (name, asset_id, asset_pair_id, sell_markup, buy_volume, sell_volume,
		    buy_limit_orders_count, sell_limit_orders_count, alpha)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9::NUMERIC)
		 ON CONFLICT (name) DO UPDATE SET
		   asset_id = EXCLUDED.asset_id,
		   asset_pair_id = EXCLUDED.asset_pair_id,
		   sell_markup = EXCLUDED.sell_markup,
		   buy_volume = EXCLUDED.buy_volume,
		   sell_volume = EXCLUDED.sell_volume,
		   buy_limit_orders_count = EXCLUDED.buy_limit_orders_count,
		   sell_limit_orders_count = EXCLUDED.sell_limit_orders_count,
		   alpha = EXCLUDED.alpha`,
		settings.Name, settings.AssetID, settings.AssetPairID,
		settings.SellMarkup.String(), settings.BuyVolume.String(), settings.SellVolume.String(),
		settings.BuyLimitOrdersCount, settings.SellLimitOrdersCount, settings.Alpha.String(),
	)
	return err
}

func (s *PostgresStore) DeleteIndexSettings(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM index_settings WHERE name = $1`, name)
	return err
}

func scanIndexSettings(row pgx.Row) (model.IndexSettings, error) {
	var v model.IndexSettings
	var markup, buyVol, sellVol, alpha string
	err := row.Scan(&v.Name, &v.AssetID, &v.AssetPairID,
		&markup, &buyVol, &sellVol,
		&v.BuyLimitOrdersCount, &v.SellLimitOrdersCount, &alpha)
	if err != nil {
		return v, err
	}
	v.SellMarkup = dec(markup)
	v.BuyVolume = dec(buyVol)
	v.SellVolume = dec(sellVol)
	v.Alpha = dec(alpha)
	return v, nil
}

// --- Asset pair settings ---

func (s *PostgresStore) ListAssetPairSettings(ctx context.Context) ([]model.AssetPairSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_pair_id, exchange, base_asset, quote_asset,
		        price_accuracy, volume_accuracy, min_volume::TEXT
		 FROM asset_pair_settings ORDER BY exchange, asset_pair_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssetPairSettings
	for rows.Next() {
		var v model.AssetPairSettings
		var minVol string
		if err := rows.Scan(&v.AssetPairID, &v.Exchange, &v.BaseAsset, &v.QuoteAsset,
			&v.PriceAccuracy, &v.VolumeAccuracy, &minVol); err != nil {
			return nil, err
		}
		v.MinVolume = dec(minVol)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAssetPairSettings(ctx context.Context, exchange, assetPairID string) (*model.AssetPairSettings, error) {
	var v model.AssetPairSettings
	var minVol string
	err := s.pool.QueryRow(ctx,
		`SELECT asset_pair_id, exchange, base_asset, quote_asset,
		        price_accuracy, volume_accuracy, min_volume::TEXT
		 FROM asset_pair_settings WHERE exchange = $1 AND asset_pair_id = $2`,
		exchange, assetPairID).
		Scan(&v.AssetPairID, &v.Exchange, &v.BaseAsset, &v.QuoteAsset,
			&v.PriceAccuracy, &v.VolumeAccuracy, &minVol)
	if err != nil {
		return nil, notFound(err)
	}
	v.MinVolume = dec(minVol)
	return &v, nil
}

func (s *PostgresStore) UpsertAssetPairSettings(ctx context.Context, settings model.AssetPairSettings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_pair_settings
		   (asset_pair_id, exchange, base_asset, quote_asset, price_accuracy, volume_accuracy, min_volume)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC)
		 ON CONFLICT (exchange, asset_pair_id) DO UPDATE SET
		   base_asset = EXCLUDED.base_asset,
		   quote_asset = EXCLUDED.quote_asset,
		   price_accuracy = EXCLUDED.price_accuracy,
		   volume_accuracy = EXCLUDED.volume_accuracy,
		   min_volume = EXCLUDED.min_volume`,
		settings.AssetPairID, settings.Exchange, settings.BaseAsset, settings.QuoteAsset,
		settings.PriceAccuracy, settings.VolumeAccuracy, settings.MinVolume.String(),
	)
	return err
}

func (s *PostgresStore) DeleteAssetPairSettings(ctx context.Context, exchange, assetPairID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM asset_pair_settings WHERE exchange = $1 AND asset_pair_id = $2`,
		exchange, assetPairID)
	return err
}

// --- Asset settings ---

func (s *PostgresStore) ListAssetSettings(ctx context.Context) ([]model.AssetSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, exchange, accuracy FROM asset_settings ORDER BY exchange, asset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssetSettings
	for rows.Next() {
		var v model.AssetSettings
		if err := rows.Scan(&v.AssetID, &v.Exchange, &v.Accuracy); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAssetSettings(ctx context.Context, exchange, assetID string) (*model.AssetSettings, error) {
	var v model.AssetSettings
	err := s.pool.QueryRow(ctx,
		`SELECT asset_id, exchange, accuracy
		 FROM asset_settings WHERE exchange = $1 AND asset_id = $2`,
		exchange, assetID).
		Scan(&v.AssetID, &v.Exchange, &v.Accuracy)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *PostgresStore) UpsertAssetSettings(ctx context.Context, settings model.AssetSettings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_settings (asset_id, exchange, accuracy)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exchange, asset_id) DO UPDATE SET accuracy = EXCLUDED.accuracy`,
		settings.AssetID, settings.Exchange, settings.Accuracy,
	)
	return err
}

func (s *PostgresStore) DeleteAssetSettings(ctx context.Context, exchange, assetID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM asset_settings WHERE exchange = $1 AND asset_id = $2`, exchange, assetID)
	return err
}

// --- Asset links ---

func (s *PostgresStore) ListAssetLinks(ctx context.Context) ([]model.AssetLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT external_asset_id, internal_asset_id FROM asset_links ORDER BY external_asset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssetLink
	for rows.Next() {
		var v model.AssetLink
		if err := rows.Scan(&v.ExternalAssetID, &v.InternalAssetID); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAssetLink(ctx context.Context, externalAssetID string) (*model.AssetLink, error) {
	var v model.AssetLink
	err := s.pool.QueryRow(ctx,
		`SELECT external_asset_id, internal_asset_id FROM asset_links WHERE external_asset_id = $1`,
		externalAssetID).
		Scan(&v.ExternalAssetID, &v.InternalAssetID)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *PostgresStore) UpsertAssetLink(ctx context.Context, link model.AssetLink) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_links (external_asset_id, internal_asset_id)
		 VALUES ($1, $2)
		 ON CONFLICT (external_asset_id) DO UPDATE SET internal_asset_id = EXCLUDED.internal_asset_id`,
		link.ExternalAssetID, link.InternalAssetID,
	)
	return err
}

func (s *PostgresStore) DeleteAssetLink(ctx context.Context, externalAssetID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM asset_links WHERE external_asset_id = $1`, externalAssetID)
	return err
}

// --- Asset hedge settings ---

func (s *PostgresStore) ListAssetHedgeSettings(ctx context.Context) ([]model.AssetHedgeSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, exchange, asset_pair_id, approved, mode
		 FROM asset_hedge_settings ORDER BY asset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssetHedgeSettings
	for rows.Next() {
		var v model.AssetHedgeSettings
		if err := rows.Scan(&v.AssetID, &v.Exchange, &v.AssetPairID, &v.Approved, &v.Mode); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAssetHedgeSettings(ctx context.Context, assetID string) (*model.AssetHedgeSettings, error) {
	var v model.AssetHedgeSettings
	err := s.pool.QueryRow(ctx,
		`SELECT asset_id, exchange, asset_pair_id, approved, mode
		 FROM asset_hedge_settings WHERE asset_id = $1`, assetID).
		Scan(&v.AssetID, &v.Exchange, &v.AssetPairID, &v.Approved, &v.Mode)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *PostgresStore) UpsertAssetHedgeSettings(ctx context.Context, settings model.AssetHedgeSettings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_hedge_settings (asset_id, exchange, asset_pair_id, approved, mode)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (asset_id) DO UPDATE SET
		   exchange = EXCLUDED.exchange,
		   asset_pair_id = EXCLUDED.asset_pair_id,
		   approved = EXCLUDED.approved,
		   mode = EXCLUDED.mode`,
		settings.AssetID, settings.Exchange, settings.AssetPairID, settings.Approved, settings.Mode,
	)
	return err
}

func (s *PostgresStore) DeleteAssetHedgeSettings(ctx context.Context, assetID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM asset_hedge_settings WHERE asset_id = $1`, assetID)
	return err
}

// --- Singletons ---
//
// Singleton settings live in engine_settings as one JSONB row each. The
// decimal fields round-trip exactly because shopspring marshals them as
// quoted strings.

func (s *PostgresStore) getSingleton(ctx context.Context, name string, dest interface{}) error {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM engine_settings WHERE name = $1`, name).Scan(&payload)
	if err != nil {
		return notFound(err)
	}
	return json.Unmarshal(payload, dest)
}

func (s *PostgresStore) putSingleton(ctx context.Context, name string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO engine_settings (name, payload)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload`,
		name, payload,
	)
	return err
}

func (s *PostgresStore) GetHedgeSettings(ctx context.Context) (*model.HedgeSettings, error) {
	var v model.HedgeSettings
	if err := s.getSingleton(ctx, "hedge_settings", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) PutHedgeSettings(ctx context.Context, settings model.HedgeSettings) error {
	return s.putSingleton(ctx, "hedge_settings", settings)
}

func (s *PostgresStore) GetMarketMakerState(ctx context.Context) (*model.MarketMakerState, error) {
	var v model.MarketMakerState
	if err := s.getSingleton(ctx, "market_maker_state", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) PutMarketMakerState(ctx context.Context, state model.MarketMakerState) error {
	return s.putSingleton(ctx, "market_maker_state", state)
}

func (s *PostgresStore) GetTimerSettings(ctx context.Context) (*model.TimerSettings, error) {
	var v model.TimerSettings
	if err := s.getSingleton(ctx, "timer_settings", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) PutTimerSettings(ctx context.Context, settings model.TimerSettings) error {
	return s.putSingleton(ctx, "timer_settings", settings)
}

// --- Index prices ---

func (s *PostgresStore) ListIndexPrices(ctx context.Context) ([]model.IndexPrice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, price::TEXT, k::TEXT, timestamp, weights
		 FROM index_prices ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IndexPrice
	for rows.Next() {
		v, err := scanIndexPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetIndexPrice(ctx context.Context, name string) (*model.IndexPrice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT name, price::TEXT, k::TEXT, timestamp, weights
		 FROM index_prices WHERE name = $1`, name)
	v, err := scanIndexPrice(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *PostgresStore) PutIndexPrice(ctx context.Context, price model.IndexPrice) error {
	weights, err := json.Marshal(price.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights for %s: %w", price.Name, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO index_prices (name, price, k, timestamp, weights)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET
		   price = EXCLUDED.price,
		   k = EXCLUDED.k,
		   timestamp = EXCLUDED.timestamp,
		   weights = EXCLUDED.weights`,
		price.Name, price.Price.String(), price.K.String(), price.Timestamp, weights,
	)
	return err
}

func scanIndexPrice(row pgx.Row) (model.IndexPrice, error) {
	var v model.IndexPrice
	var price, k string
	var weights []byte
	if err := row.Scan(&v.Name, &price, &k, &v.Timestamp, &weights); err != nil {
		return v, err
	}
	v.Price = dec(price)
	v.K = dec(k)
	if err := json.Unmarshal(weights, &v.Weights); err != nil {
		return v, fmt.Errorf("unmarshal weights for %s: %w", v.Name, err)
	}
	return v, nil
}

// --- Limit orders ---

func (s *PostgresStore) PutLimitOrders(ctx context.Context, assetPairID string, limitOrders []model.LimitOrder) error {
	payload, err := json.Marshal(limitOrders)
	if err != nil {
		return fmt.Errorf("marshal limit orders for %s: %w", assetPairID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO limit_order_sets (asset_pair_id, orders, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (asset_pair_id) DO UPDATE SET
		   orders = EXCLUDED.orders,
		   updated_at = NOW()`,
		assetPairID, payload,
	)
	return err
}

func (s *PostgresStore) GetLimitOrders(ctx context.Context, assetPairID string) ([]model.LimitOrder, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT orders FROM limit_order_sets WHERE asset_pair_id = $1`, assetPairID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []model.LimitOrder
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("unmarshal limit orders for %s: %w", assetPairID, err)
	}
	return out, nil
}

// --- Positions ---

func (s *PostgresStore) ListTokenPositions(ctx context.Context) ([]model.TokenPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, open_volume::TEXT, opposite_volume::TEXT, realized_pnl::TEXT, updated_at
		 FROM token_positions ORDER BY asset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TokenPosition
	for rows.Next() {
		var v model.TokenPosition
		var open, opp, pnl string
		if err := rows.Scan(&v.AssetID, &open, &opp, &pnl, &v.UpdatedAt); err != nil {
			return nil, err
		}
		v.OpenVolume = dec(open)
		v.OppositeVolume = dec(opp)
		v.RealizedPnL = dec(pnl)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTokenPosition(ctx context.Context, assetID string) (*model.TokenPosition, error) {
	var v model.TokenPosition
	var open, opp, pnl string
	err := s.pool.QueryRow(ctx,
		`SELECT asset_id, open_volume::TEXT, opposite_volume::TEXT, realized_pnl::TEXT, updated_at
		 FROM token_positions WHERE asset_id = $1`, assetID).
		Scan(&v.AssetID, &open, &opp, &pnl, &v.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	v.OpenVolume = dec(open)
	v.OppositeVolume = dec(opp)
	v.RealizedPnL = dec(pnl)
	return &v, nil
}

func (s *PostgresStore) ListHedgePositions(ctx context.Context) ([]model.HedgePosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, exchange, volume::TEXT, updated_at
		 FROM hedge_positions ORDER BY asset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HedgePosition
	for rows.Next() {
		var v model.HedgePosition
		var vol string
		if err := rows.Scan(&v.AssetID, &v.Exchange, &vol, &v.UpdatedAt); err != nil {
			return nil, err
		}
		v.Volume = dec(vol)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetHedgePosition(ctx context.Context, assetID string) (*model.HedgePosition, error) {
	var v model.HedgePosition
	var vol string
	err := s.pool.QueryRow(ctx,
		`SELECT asset_id, exchange, volume::TEXT, updated_at
		 FROM hedge_positions WHERE asset_id = $1`, assetID).
		Scan(&v.AssetID, &v.Exchange, &vol, &v.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	v.Volume = dec(vol)
	return &v, nil
}

// --- Trades ---
//
// A trade and the position it updates commit in one transaction so a
// crash between the two cannot leave them inconsistent.

func (s *PostgresStore) InsertInternalTrade(ctx context.Context, trade model.InternalTrade, position model.TokenPosition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO internal_trades
		   (id, asset_pair_id, type, price, volume, opposite_volume, timestamp, wallet_id)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8)`,
		trade.ID, trade.AssetPairID, trade.Type,
		trade.Price.String(), trade.Volume.String(), trade.OppositeVolume.String(),
		trade.Timestamp, trade.WalletID,
	)
	if err != nil {
		return fmt.Errorf("insert internal trade %s: %w", trade.ID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO token_positions (asset_id, open_volume, opposite_volume, realized_pnl, updated_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5)
		 ON CONFLICT (asset_id) DO UPDATE SET
		   open_volume = EXCLUDED.open_volume,
		   opposite_volume = EXCLUDED.opposite_volume,
		   realized_pnl = EXCLUDED.realized_pnl,
		   updated_at = EXCLUDED.updated_at`,
		position.AssetID,
		position.OpenVolume.String(), position.OppositeVolume.String(), position.RealizedPnL.String(),
		position.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update token position %s: %w", position.AssetID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListInternalTrades(ctx context.Context, assetPairID string, limit int) ([]model.InternalTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset_pair_id, type, price::TEXT, volume::TEXT, opposite_volume::TEXT, timestamp, wallet_id
		 FROM internal_trades
		 WHERE ($1 = '' OR asset_pair_id = $1)
		 ORDER BY timestamp DESC LIMIT $2`, assetPairID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InternalTrade
	for rows.Next() {
		var v model.InternalTrade
		var price, vol, opp string
		if err := rows.Scan(&v.ID, &v.AssetPairID, &v.Type, &price, &vol, &opp, &v.Timestamp, &v.WalletID); err != nil {
			return nil, err
		}
		v.Price = dec(price)
		v.Volume = dec(vol)
		v.OppositeVolume = dec(opp)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertExternalTrade(ctx context.Context, trade model.ExternalTrade, position model.HedgePosition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO external_trades
		   (id, exchange, asset_pair_id, asset_id, type, price, volume, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		trade.ID, trade.Exchange, trade.AssetPairID, trade.AssetID, trade.Type,
		trade.Price.String(), trade.Volume.String(), trade.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert external trade %s: %w", trade.ID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO hedge_positions (asset_id, exchange, volume, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4)
		 ON CONFLICT (asset_id) DO UPDATE SET
		   exchange = EXCLUDED.exchange,
		   volume = EXCLUDED.volume,
		   updated_at = EXCLUDED.updated_at`,
		position.AssetID, position.Exchange, position.Volume.String(), position.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update hedge position %s: %w", position.AssetID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListExternalTrades(ctx context.Context, exchange string, limit int) ([]model.ExternalTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, exchange, asset_pair_id, asset_id, type, price::TEXT, volume::TEXT, timestamp
		 FROM external_trades
		 WHERE ($1 = '' OR exchange = $1)
		 ORDER BY timestamp DESC LIMIT $2`, exchange, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExternalTrade
	for rows.Next() {
		var v model.ExternalTrade
		var price, vol string
		if err := rows.Scan(&v.ID, &v.Exchange, &v.AssetPairID, &v.AssetID, &v.Type, &price, &vol, &v.Timestamp); err != nil {
			return nil, err
		}
		v.Price = dec(price)
		v.Volume = dec(vol)
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Cross asset pairs ---

func (s *PostgresStore) ListCrossAssetPairs(ctx context.Context) ([]model.CrossAssetPairSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, base_asset_pair_id, cross_asset_pair_id, is_inverted, exchange
		 FROM cross_asset_pairs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CrossAssetPairSettings
	for rows.Next() {
		var v model.CrossAssetPairSettings
		if err := rows.Scan(&v.ID, &v.BaseAssetPairID, &v.CrossAssetPairID, &v.IsInverted, &v.Exchange); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertCrossAssetPair(ctx context.Context, settings model.CrossAssetPairSettings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cross_asset_pairs (id, base_asset_pair_id, cross_asset_pair_id, is_inverted, exchange)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   base_asset_pair_id = EXCLUDED.base_asset_pair_id,
		   cross_asset_pair_id = EXCLUDED.cross_asset_pair_id,
		   is_inverted = EXCLUDED.is_inverted,
		   exchange = EXCLUDED.exchange`,
		settings.ID, settings.BaseAssetPairID, settings.CrossAssetPairID, settings.IsInverted, settings.Exchange,
	)
	return err
}

func (s *PostgresStore) DeleteCrossAssetPair(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cross_asset_pairs WHERE id = $1`, id)
	return err
}
