package engine

import "github.com/redis/go-redis/v9"

// Redis keyspace used by the engine.
const (
	// StateKeyPrefix + listID is the L2 hash for a list.
	StateKeyPrefix = "todo:state:"
	// RevClockKey holds the last revision minted by any mutation script,
	// making revisions strictly monotonic per Redis instance.
	RevClockKey = "todo:rev_clock"
	// Channel is the single Pub/Sub channel all mutation events ride on.
	Channel = "todo:updates"
)

// StateKey returns the L2 hash key for a list.
func StateKey(listID string) string { return StateKeyPrefix + listID }

// The mutation scripts are the only code path that mints revisions. Redis
// executes them single-threaded, so revisions are totally ordered without
// distributed locks, and the PUBLISH inside the script ships with the commit.
//
// Revisions are wall-clock stamps (TIME seconds + microseconds/1e6) clamped
// to strictly exceed the previous one by at least 1e-4. Four fractional
// digits survive Lua's %.14g number formatting at epoch magnitudes; finer
// steps would be silently rounded away. The stamp is quantized to those four
// digits before the clock comparison: a raw stamp can exceed the stored
// clock yet collapse onto it when formatted. The scripts return the revision
// as a string because Redis truncates Lua number replies to integers.
const mintRevLua = `
local function mint_rev(clock_key)
    local time_parts = redis.call('TIME')
    local now = tonumber(time_parts[1]) + tonumber(time_parts[2]) / 1000000
    local last_rev = tonumber(redis.call('GET', clock_key) or '0')
    local rev_str = string.format('%.4f', now)
    if tonumber(rev_str) <= last_rev then
        rev_str = string.format('%.4f', last_rev + 0.0001)
    end
    redis.call('SET', clock_key, rev_str)
    return rev_str, time_parts[1]
end
`

var addItemScript = redis.NewScript(mintRevLua + `
local list_key = KEYS[1]
local item_id = ARGV[1]
local item_data = ARGV[2]

local rev_str, now_sec = mint_rev(KEYS[2])

local items_json = redis.call('HGET', list_key, 'items')
local items = {}
if items_json then
    items = cjson.decode(items_json)
end

items[item_id] = cjson.decode(item_data)

redis.call('HSET', list_key,
    'rev', rev_str,
    'items', cjson.encode(items),
    'updated_at', now_sec
)

local list_id = string.match(list_key, 'todo:state:(.+)')
local message = cjson.encode({
    type = 'item_added',
    list_id = list_id,
    item = cjson.decode(item_data),
    rev = tonumber(rev_str)
})
redis.call('PUBLISH', 'todo:updates', message)

return rev_str
`)

var updateItemScript = redis.NewScript(mintRevLua + `
local list_key = KEYS[1]
local item_id = ARGV[1]
local item_data = ARGV[2]

local items_json = redis.call('HGET', list_key, 'items')
if not items_json then
    return redis.error_reply('List not found')
end

local items = cjson.decode(items_json)
if not items[item_id] then
    return redis.error_reply('Item not found')
end

local rev_str, now_sec = mint_rev(KEYS[2])

items[item_id] = cjson.decode(item_data)

redis.call('HSET', list_key,
    'rev', rev_str,
    'items', cjson.encode(items),
    'updated_at', now_sec
)

local list_id = string.match(list_key, 'todo:state:(.+)')
local message = cjson.encode({
    type = 'item_updated',
    list_id = list_id,
    item = cjson.decode(item_data),
    rev = tonumber(rev_str)
})
redis.call('PUBLISH', 'todo:updates', message)

return rev_str
`)

var deleteItemScript = redis.NewScript(mintRevLua + `
local list_key = KEYS[1]
local item_id = ARGV[1]

local items_json = redis.call('HGET', list_key, 'items')
if not items_json then
    return redis.error_reply('List not found')
end

local items = cjson.decode(items_json)
if not items[item_id] then
    return redis.error_reply('Item not found')
end

local rev_str, now_sec = mint_rev(KEYS[2])

-- Hard delete from the L2 map; the durable store soft-deletes.
items[item_id] = nil

redis.call('HSET', list_key,
    'rev', rev_str,
    'items', cjson.encode(items),
    'updated_at', now_sec
)

local list_id = string.match(list_key, 'todo:state:(.+)')
local message = cjson.encode({
    type = 'item_deleted',
    list_id = list_id,
    item_id = item_id,
    rev = tonumber(rev_str)
})
redis.call('PUBLISH', 'todo:updates', message)

return rev_str
`)
