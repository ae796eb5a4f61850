// Package llmfactory creates models from a configuration file, with
// routes mapping a use such as generate or embeddings to preferred models.
package llmfactory
