// Package config handles configuration loading for praxy-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	completion:
//	  api_key: "${TOGETHER_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:4000"
//
// Ledger database:
//
//	database:
//	  path: "/var/lib/praxy/ledger.db"
//
// Completion endpoint (OpenAI-compatible):
//
//	completion:
//	  base_url: "https://api.together.xyz/v1"
//	  api_key: "${TOGETHER_API_KEY}"
//	  system_prompt: "You are an expert doctor on Sore Throat in Adults."
//	  default_variant: "t_tuned"
//	  timeout: "60s"
//
// Model variants (code -> backend model, merged over built-in defaults):
//
//	models:
//	  t_tuned: "org/Meta-Llama-3.1-8B-Instruct-Reference-test_token_8b-14cdef80"
//
// Vector store for document ingest:
//
//	indexer:
//	  qdrant_host: "localhost"
//	  qdrant_port: 6334
//	  collection: "medical_chunks"
//	  symkey_hex: "${INGEST_SYMKEY_HEX}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
