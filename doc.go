// Package pitfeat builds point-in-time correct features for ranking and
// recommendation models from event-level interaction logs.
//
// Every transform takes an interaction Frame and returns a new Frame with
// feature columns appended. Features are computed from history strictly
// observable at each row's timestamp: auxiliary tables are attached with a
// backward as-of join, and decayed aggregates only read earlier steps.
//
// # Transforms
//
//   - ContentPriceHistory: price snapshot features, smoothed category
//     statistics and tenure of a content item.
//   - UserHistory and TermToUserRatios: sitewide and per-term user
//     aggregates with their ratios.
//   - CandidateCounter and SessionRanking: per-session candidate counts and
//     ranks of content aggregates within a session.
//   - TimeWindowHistory: rolling calendar window statistics with lags.
//   - UserMetadata: age and account age derived from registration data.
//   - DecayFeatures: exponentially decayed counters at several horizons.
//
// # Pipelines
//
// A Pipeline chains transforms. Pipelines are usually defined in YAML and
// built with LoadPipelineConfig:
//
//	base: interactions
//	output: train_features
//	stages:
//	  - name: sitewide
//	    kind: user_history
//	    inputs: {users: user_sitewide_hourly}
//	  - name: decay
//	    kind: decay_features
//	    inputs: {history: interactions}
//	    params:
//	      half_life: 5
//
// # Snapshots
//
// Results are stored as compressed, checksummed snapshots through a
// SnapshotStore backed by a local directory, S3 or SQLite. SQLiteTables
// reads pipeline inputs from and writes results to SQLite tables.
package pitfeat
