package migrations

import (
	"github.com/go-pg/migrations/v8"
)

// Schema version 1: the full Graphix entity graph (spec.md §3).

func init() {
	up := batch(`
CREATE TABLE IF NOT EXISTS "networks" (
	"name" text NOT NULL,
	"caip2" text,
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("name")
);

CREATE TABLE IF NOT EXISTS "indexers" (
	"address" text NOT NULL,
	"display_name" text,
	"url" text,
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("address")
);

CREATE TABLE IF NOT EXISTS "sg_deployments" (
	"ipfs_hash" text NOT NULL,
	"network_name" text REFERENCES "networks"("name"),
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("ipfs_hash")
);

CREATE TABLE IF NOT EXISTS "sg_names" (
	"deployment_ipfs_hash" text NOT NULL REFERENCES "sg_deployments"("ipfs_hash"),
	"name" text,
	PRIMARY KEY ("deployment_ipfs_hash")
);

CREATE TABLE IF NOT EXISTS "blocks" (
	"network_name" text NOT NULL,
	"number" bigint NOT NULL,
	"hash" text NOT NULL,
	PRIMARY KEY ("network_name", "number", "hash")
);

CREATE TABLE IF NOT EXISTS "indexer_versions" (
	"indexer_address" text NOT NULL REFERENCES "indexers"("address"),
	"created_at" timestamptz NOT NULL,
	"version" text,
	"commit" text,
	"error" text,
	PRIMARY KEY ("indexer_address", "created_at")
);

CREATE TABLE IF NOT EXISTS "indexer_network_subgraph_metadata" (
	"indexer_address" text NOT NULL REFERENCES "indexers"("address"),
	"staked_tokens" text,
	"allocation_count" integer,
	"rewards_earned" text,
	"geohash" text,
	"url" text,
	"refreshed_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("indexer_address")
);

CREATE TABLE IF NOT EXISTS "pois" (
	"id" bigserial NOT NULL,
	"deployment_ipfs_hash" text NOT NULL REFERENCES "sg_deployments"("ipfs_hash"),
	"indexer_address" text NOT NULL REFERENCES "indexers"("address"),
	"network_name" text NOT NULL,
	"block_number" bigint NOT NULL,
	"block_hash" text NOT NULL,
	"hash" text NOT NULL,
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("id"),
	UNIQUE ("deployment_ipfs_hash", "indexer_address", "block_number")
);

CREATE TABLE IF NOT EXISTS "live_pois" (
	"deployment_ipfs_hash" text NOT NULL REFERENCES "sg_deployments"("ipfs_hash"),
	"indexer_address" text NOT NULL REFERENCES "indexers"("address"),
	"poi_id" bigint NOT NULL REFERENCES "pois"("id"),
	"network_name" text NOT NULL,
	"block_number" bigint NOT NULL,
	"block_hash" text NOT NULL,
	"hash" text NOT NULL,
	"updated_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("deployment_ipfs_hash", "indexer_address")
);

CREATE INDEX IF NOT EXISTS "live_pois_hash_idx" ON "live_pois" ("hash");

CREATE TABLE IF NOT EXISTS "failed_queries" (
	"id" bigserial NOT NULL,
	"indexer_address" text,
	"query_name" text,
	"deployment_ipfs_hash" text,
	"raw_query" text,
	"response_body" text,
	"error" text,
	"requested_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("id")
);

CREATE TABLE IF NOT EXISTS "pending_divergence_investigation_requests" (
	"uuid" text NOT NULL,
	"request_json" text NOT NULL,
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("uuid")
);

CREATE TABLE IF NOT EXISTS "divergence_investigation_reports" (
	"uuid" text NOT NULL,
	"report_json" text NOT NULL,
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("uuid")
);

CREATE TABLE IF NOT EXISTS "api_tokens" (
	"public_prefix" text NOT NULL,
	"token_hash" text NOT NULL,
	"permission" text,
	"notes" text,
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("public_prefix")
);

CREATE TABLE IF NOT EXISTS "configs" (
	"id" bigserial NOT NULL,
	"json" text NOT NULL,
	"created_at" timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY ("id")
);
`)
	down := batch(`
DROP TABLE IF EXISTS public.configs;
DROP TABLE IF EXISTS public.api_tokens;
DROP TABLE IF EXISTS public.divergence_investigation_reports;
DROP TABLE IF EXISTS public.pending_divergence_investigation_requests;
DROP TABLE IF EXISTS public.failed_queries;
DROP TABLE IF EXISTS public.live_pois;
DROP TABLE IF EXISTS public.pois;
DROP TABLE IF EXISTS public.indexer_network_subgraph_metadata;
DROP TABLE IF EXISTS public.indexer_versions;
DROP TABLE IF EXISTS public.blocks;
DROP TABLE IF EXISTS public.sg_names;
DROP TABLE IF EXISTS public.sg_deployments;
DROP TABLE IF EXISTS public.indexers;
DROP TABLE IF EXISTS public.networks;
`)
	migrations.MustRegisterTx(up, down)
}
