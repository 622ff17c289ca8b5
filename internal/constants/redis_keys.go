package constants

// Redis key prefixes and formats.
// Naming convention: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix is the shared application prefix for every Redis key.
	AppPrefix = "jobmatch"

	// MatchModulePrefix covers the matching pipeline.
	MatchModulePrefix = "match"
	// JobModulePrefix covers job corpus entities.
	JobModulePrefix = "job"

	// EntityResult is a cached match response.
	EntityResult = "result"
	// EntityLock is a distributed lock.
	EntityLock = "lock"
	// EntityStats is cached corpus statistics.
	EntityStats = "stats"

	// KeyMatchResult caches a full match response (STRING, JSON).
	// Format: jobmatch:match:result:{resumeID}:{limit}
	KeyMatchResult = AppPrefix + ":" + MatchModulePrefix + ":" + EntityResult + ":%s:%d"

	// KeyMatchLock guards against concurrent match runs for one résumé (STRING).
	// Format: jobmatch:match:lock:{resumeID}
	KeyMatchLock = AppPrefix + ":" + MatchModulePrefix + ":" + EntityLock + ":%s"

	// KeyCorpusStats caches the corpus stats response (STRING, JSON).
	// Format: jobmatch:job:stats
	KeyCorpusStats = AppPrefix + ":" + JobModulePrefix + ":" + EntityStats
)
