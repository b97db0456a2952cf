package redisstore

import "github.com/redis/go-redis/v9"

// Every script takes the key prefix as ARGV[1] and replies with a status
// string first: "ok", "not_found", "duplicate_name" or "empty". Records are
// returned as flat HGETALL field/value lists.
//
// Scripts build their keys from the prefix, so they are not cluster-safe.
// ZPOPMIN and TIME before writes need Redis 5 or newer.

// clockLua returns the server time in microseconds as a string, clamped so it
// never goes backwards. Queue order is by entry id; the clamp keeps enqueue
// times in the same order.
const clockLua = `
local function clock(p)
  local t = redis.call('TIME')
  local now = tonumber(t[1]) * 1000000 + tonumber(t[2])
  local last = tonumber(redis.call('GET', p .. ':clock') or '0')
  if now < last then
    now = last
  end
  local s = string.format('%.0f', now)
  redis.call('SET', p .. ':clock', s)
  return s
end
`

// purgeLua deletes every entry of one line and returns how many there were.
const purgeLua = `
local function purge(p, line)
  local ids = redis.call('ZRANGE', line, 0, -1)
  for _, eid in ipairs(ids) do
    redis.call('DEL', p .. ':entry:' .. eid)
  end
  redis.call('DEL', line)
  return #ids
end
`

// ARGV: prefix, name, description, duration.
var createAttractionScript = redis.NewScript(clockLua + `
local p, name = ARGV[1], ARGV[2]
local byname = p .. ':attractions:byname'
if redis.call('HEXISTS', byname, name) == 1 then
  return {'duplicate_name'}
end
local id = redis.call('INCR', p .. ':attraction:seq')
local key = p .. ':attraction:' .. id
local now = clock(p)
redis.call('HSET', key, 'id', id, 'name', name, 'description', ARGV[3],
  'duration', ARGV[4], 'created_us', now, 'updated_us', now)
redis.call('HSET', byname, name, id)
redis.call('ZADD', p .. ':attractions', id, id)
return {'ok', redis.call('HGETALL', key)}
`)

// ARGV: prefix, id, name, description, duration.
var updateAttractionScript = redis.NewScript(clockLua + `
local p, id, name = ARGV[1], ARGV[2], ARGV[3]
local key = p .. ':attraction:' .. id
local byname = p .. ':attractions:byname'
local old = redis.call('HGET', key, 'name')
if not old then
  return {'not_found'}
end
local owner = redis.call('HGET', byname, name)
if owner and owner ~= id then
  return {'duplicate_name'}
end
redis.call('HDEL', byname, old)
redis.call('HSET', byname, name, id)
redis.call('HSET', key, 'name', name, 'description', ARGV[4],
  'duration', ARGV[5], 'updated_us', clock(p))
return {'ok', redis.call('HGETALL', key)}
`)

// ARGV: prefix, id. Replies with the number of entries removed with it.
var deleteAttractionScript = redis.NewScript(purgeLua + `
local p, id = ARGV[1], ARGV[2]
local key = p .. ':attraction:' .. id
local name = redis.call('HGET', key, 'name')
if not name then
  return {'not_found'}
end
local removed = purge(p, p .. ':queue:' .. id)
redis.call('HDEL', p .. ':attractions:byname', name)
redis.call('ZREM', p .. ':attractions', id)
redis.call('DEL', key)
return {'ok', removed}
`)

// ARGV: prefix.
var listAttractionsScript = redis.NewScript(`
local p = ARGV[1]
local out = {'ok'}
for _, id in ipairs(redis.call('ZRANGE', p .. ':attractions', 0, -1)) do
  out[#out + 1] = redis.call('HGETALL', p .. ':attraction:' .. id)
end
return out
`)

// ARGV: prefix, attraction id, person name. Replies with the entry and the
// line depth after the insert.
var insertEntryScript = redis.NewScript(clockLua + `
local p, aid = ARGV[1], ARGV[2]
if redis.call('EXISTS', p .. ':attraction:' .. aid) == 0 then
  return {'not_found'}
end
local id = redis.call('INCR', p .. ':entry:seq')
local key = p .. ':entry:' .. id
redis.call('HSET', key, 'id', id, 'attraction_id', aid,
  'person_name', ARGV[3], 'enqueued_us', clock(p))
local line = p .. ':queue:' .. aid
redis.call('ZADD', line, id, id)
return {'ok', redis.call('HGETALL', key), redis.call('ZCARD', line)}
`)

// ARGV: prefix, attraction id. Replies with the entry and the remaining depth.
var popHeadScript = redis.NewScript(`
local p, aid = ARGV[1], ARGV[2]
local line = p .. ':queue:' .. aid
local popped = redis.call('ZPOPMIN', line)
if #popped == 0 then
  return {'empty'}
end
local key = p .. ':entry:' .. popped[1]
local fields = redis.call('HGETALL', key)
redis.call('DEL', key)
return {'ok', fields, redis.call('ZCARD', line)}
`)

// ARGV: prefix, entry id. Replies with the entry and the remaining depth of
// its line.
var deleteEntryScript = redis.NewScript(`
local p, id = ARGV[1], ARGV[2]
local key = p .. ':entry:' .. id
local aid = redis.call('HGET', key, 'attraction_id')
if not aid then
  return {'not_found'}
end
local fields = redis.call('HGETALL', key)
local line = p .. ':queue:' .. aid
redis.call('ZREM', line, id)
redis.call('DEL', key)
return {'ok', fields, redis.call('ZCARD', line)}
`)

// ARGV: prefix, attraction id. Replies with the number of entries removed.
var clearLineScript = redis.NewScript(purgeLua + `
local p = ARGV[1]
return {'ok', purge(p, p .. ':queue:' .. ARGV[2])}
`)

// ARGV: prefix, attraction id.
var listEntriesScript = redis.NewScript(`
local p = ARGV[1]
local out = {'ok'}
for _, id in ipairs(redis.call('ZRANGE', p .. ':queue:' .. ARGV[2], 0, -1)) do
  out[#out + 1] = redis.call('HGETALL', p .. ':entry:' .. id)
end
return out
`)
