// Package local runs the embedding model and cross-encoder in-process.
//
// Each model directory holds a WordPiece vocab.txt, a BERT config.json and
// model.safetensors. Inference fans out over an ants worker pool shared by
// the provider's services.
package local
