package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

var _ port.Store = (*RedisAdapter)(nil)

const defaultRedisPrefix = "stockledger:"

// Stock rows live in one hash (material -> JSON record). Each script touches
// the row, the id counter and the log list in a single atomic call.

var commitInflowScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
local rec
if raw then
	rec = cjson.decode(raw)
end

local quantity = tonumber(ARGV[2])
local current = rec and rec.quantity or 0
if current > tonumber(ARGV[5]) - quantity then
	return {0, current}
end
if not rec then
	rec = {id = redis.call('INCR', KEYS[2]), material = ARGV[1], quantity = 0, version = 0}
end

rec.quantity = rec.quantity + quantity
rec.version = rec.version + 1
rec.updated_at = ARGV[4]
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(rec))

local id = redis.call('INCR', KEYS[4])
redis.call('RPUSH', KEYS[3], cjson.encode({id = id, material = ARGV[1], quantity = quantity, timestamp = ARGV[3]}))
return {id, rec.quantity}
`)

var commitOutflowScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
if not raw then
	return {0, 0}
end

local rec = cjson.decode(raw)
local quantity = tonumber(ARGV[2])
if rec.quantity < quantity then
	return {0, rec.quantity}
end

rec.quantity = rec.quantity - quantity
rec.version = rec.version + 1
rec.updated_at = ARGV[5]
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(rec))

local id = redis.call('INCR', KEYS[3])
redis.call('RPUSH', KEYS[2], cjson.encode({id = id, material = ARGV[1], quantity = quantity, recipient = ARGV[3], timestamp = ARGV[4]}))
return {id, rec.quantity}
`)

var removeStockScript = redis.NewScript(`
local all = redis.call('HGETALL', KEYS[1])
for i = 1, #all, 2 do
	local rec = cjson.decode(all[i + 1])
	if rec.id == tonumber(ARGV[1]) then
		redis.call('HDEL', KEYS[1], all[i])
		return 1
	end
end
return 0
`)

// KEYS: byID, byName, seq. ARGV: name.
var createNameScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
	return 0
end
local id = redis.call('INCR', KEYS[3])
redis.call('HSET', KEYS[1], id, ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], id)
return id
`)

// KEYS: byID, byName. ARGV: id.
var deleteNameScript = redis.NewScript(`
local name = redis.call('HGET', KEYS[1], ARGV[1])
if not name then
	return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], name)
return 1
`)

type redisStockRecord struct {
	ID        int64  `json:"id"`
	Material  string `json:"material"`
	Quantity  int    `json:"quantity"`
	Version   int    `json:"version"`
	UpdatedAt string `json:"updated_at"`
}

type redisEntry struct {
	ID        int64  `json:"id"`
	Material  string `json:"material"`
	Quantity  int    `json:"quantity"`
	Recipient string `json:"recipient,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RedisAdapter keeps the whole store under one key prefix. Lua scripts give
// the same all-or-nothing commit that transactions give the SQL adapters.
type RedisAdapter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisAdapter(client *redis.Client, prefix string) *RedisAdapter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisAdapter{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisAdapter) key(name string) string { return r.prefix + name }

func (r *RedisAdapter) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (r *RedisAdapter) Close() error {
	return r.client.Close()
}

func (r *RedisAdapter) resolve(ctx context.Context, kind string, id int64, notFound error) (string, error) {
	name, err := r.client.HGet(ctx, r.key("catalog:"+kind), strconv.FormatInt(id, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s %d: %w", kind, id, notFound)
	}
	if err != nil {
		return "", storageErr("resolve "+kind, err)
	}
	return name, nil
}

func (r *RedisAdapter) ResolveMaterialName(ctx context.Context, id int64) (string, error) {
	return r.resolve(ctx, "materials", id, domain.ErrMaterialNotFound)
}

func (r *RedisAdapter) ResolvePersonName(ctx context.Context, id int64) (string, error) {
	return r.resolve(ctx, "persons", id, domain.ErrPersonNotFound)
}

func (r *RedisAdapter) createName(ctx context.Context, kind, name string) (int64, error) {
	keys := []string{r.key("catalog:" + kind), r.key("catalog:" + kind + ":names"), r.key("catalog:" + kind + ":seq")}
	id, err := createNameScript.Run(ctx, r.client, keys, name).Int64()
	if err != nil {
		return 0, storageErr("create "+kind, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("%s %q: %w", kind, name, domain.ErrDuplicateName)
	}
	return id, nil
}

func (r *RedisAdapter) deleteName(ctx context.Context, kind string, id int64, notFound error) error {
	keys := []string{r.key("catalog:" + kind), r.key("catalog:" + kind + ":names")}
	ok, err := deleteNameScript.Run(ctx, r.client, keys, id).Int()
	if err != nil {
		return storageErr("delete "+kind, err)
	}
	if ok == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, notFound)
	}
	return nil
}

func (r *RedisAdapter) listNames(ctx context.Context, kind string) ([]int64, map[int64]string, error) {
	all, err := r.client.HGetAll(ctx, r.key("catalog:"+kind)).Result()
	if err != nil {
		return nil, nil, storageErr("list "+kind, err)
	}
	ids := make([]int64, 0, len(all))
	names := make(map[int64]string, len(all))
	for k, v := range all {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, nil, storageErr("list "+kind, err)
		}
		ids = append(ids, id)
		names[id] = v
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, names, nil
}

func (r *RedisAdapter) CreateMaterial(ctx context.Context, name string) (domain.Material, error) {
	id, err := r.createName(ctx, "materials", name)
	if err != nil {
		return domain.Material{}, err
	}
	return domain.Material{ID: id, Name: name}, nil
}

func (r *RedisAdapter) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	ids, names, err := r.listNames(ctx, "materials")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Material, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Material{ID: id, Name: names[id]})
	}
	return out, nil
}

func (r *RedisAdapter) DeleteMaterial(ctx context.Context, id int64) error {
	return r.deleteName(ctx, "materials", id, domain.ErrMaterialNotFound)
}

func (r *RedisAdapter) CreatePerson(ctx context.Context, name string) (domain.Person, error) {
	id, err := r.createName(ctx, "persons", name)
	if err != nil {
		return domain.Person{}, err
	}
	return domain.Person{ID: id, Name: name}, nil
}

func (r *RedisAdapter) ListPersons(ctx context.Context) ([]domain.Person, error) {
	ids, names, err := r.listNames(ctx, "persons")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Person, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Person{ID: id, Name: names[id]})
	}
	return out, nil
}

func (r *RedisAdapter) DeletePerson(ctx context.Context, id int64) error {
	return r.deleteName(ctx, "persons", id, domain.ErrPersonNotFound)
}

func (r *RedisAdapter) Stock(ctx context.Context, material string) (int, error) {
	raw, err := r.client.HGet(ctx, r.key("stock"), material).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("query stock", err)
	}
	var rec redisStockRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return 0, storageErr("decode stock", err)
	}
	return rec.Quantity, nil
}

func (r *RedisAdapter) CommitInflow(ctx context.Context, entry domain.InflowEntry) (domain.InflowEntry, int, error) {
	if err := ctx.Err(); err != nil {
		return domain.InflowEntry{}, 0, err
	}
	keys := []string{r.key("stock"), r.key("stock:seq"), r.key("inflows"), r.key("inflows:seq")}
	res, err := commitInflowScript.Run(ctx, r.client, keys,
		entry.Material, entry.Quantity, formatTime(entry.Timestamp), formatTime(r.now()), domain.MaxQuantity,
	).Int64Slice()
	if err != nil {
		return domain.InflowEntry{}, 0, storageErr("commit inflow", err)
	}
	if res[0] == 0 {
		return domain.InflowEntry{}, int(res[1]), domain.ErrStockLimit
	}
	entry.ID = res[0]
	return entry, int(res[1]), nil
}

func (r *RedisAdapter) CommitOutflow(ctx context.Context, entry domain.OutflowEntry) (domain.OutflowEntry, int, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutflowEntry{}, 0, err
	}
	keys := []string{r.key("stock"), r.key("outflows"), r.key("outflows:seq")}
	res, err := commitOutflowScript.Run(ctx, r.client, keys,
		entry.Material, entry.Quantity, entry.Recipient, formatTime(entry.Timestamp), formatTime(r.now()),
	).Int64Slice()
	if err != nil {
		return domain.OutflowEntry{}, 0, storageErr("commit outflow", err)
	}
	if res[0] == 0 {
		return domain.OutflowEntry{}, int(res[1]), domain.ErrInsufficientStock
	}
	entry.ID = res[0]
	return entry, int(res[1]), nil
}

func (r *RedisAdapter) readLog(ctx context.Context, key string) ([]redisEntry, error) {
	raws, err := r.client.LRange(ctx, r.key(key), 0, -1).Result()
	if err != nil {
		return nil, storageErr("list "+key, err)
	}
	out := make([]redisEntry, 0, len(raws))
	for _, raw := range raws {
		var e redisEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, storageErr("decode "+key, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisAdapter) ListInflows(ctx context.Context) ([]domain.InflowEntry, error) {
	raws, err := r.readLog(ctx, "inflows")
	if err != nil {
		return nil, err
	}
	out := make([]domain.InflowEntry, 0, len(raws))
	for _, e := range raws {
		out = append(out, domain.InflowEntry{
			ID:        e.ID,
			Material:  e.Material,
			Quantity:  e.Quantity,
			Timestamp: parseTime(e.Timestamp),
		})
	}
	return out, nil
}

func (r *RedisAdapter) ListOutflows(ctx context.Context) ([]domain.OutflowEntry, error) {
	raws, err := r.readLog(ctx, "outflows")
	if err != nil {
		return nil, err
	}
	out := make([]domain.OutflowEntry, 0, len(raws))
	for _, e := range raws {
		out = append(out, domain.OutflowEntry{
			ID:        e.ID,
			Material:  e.Material,
			Quantity:  e.Quantity,
			Recipient: e.Recipient,
			Timestamp: parseTime(e.Timestamp),
		})
	}
	return out, nil
}

func (r *RedisAdapter) CurrentStock(ctx context.Context) ([]domain.StockRecord, error) {
	raws, err := r.client.HVals(ctx, r.key("stock")).Result()
	if err != nil {
		return nil, storageErr("list stock", err)
	}
	out := make([]domain.StockRecord, 0, len(raws))
	for _, raw := range raws {
		var rec redisStockRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, storageErr("decode stock", err)
		}
		out = append(out, domain.StockRecord{
			ID:        rec.ID,
			Material:  rec.Material,
			Quantity:  rec.Quantity,
			Version:   rec.Version,
			UpdatedAt: parseTime(rec.UpdatedAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RedisAdapter) RemoveStockRecord(ctx context.Context, id int64) error {
	ok, err := removeStockScript.Run(ctx, r.client, []string{r.key("stock")}, id).Int()
	if err != nil {
		return storageErr("remove stock", err)
	}
	if ok == 0 {
		return fmt.Errorf("stock record %d: %w", id, domain.ErrStockRecordNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
