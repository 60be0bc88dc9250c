package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/mizan/nn"
	"github.com/poiesic/mizan/tokenizer"
)

// File names read from a model directory in addition to the nn files.
const (
	VocabFile           = "vocab.txt"
	TokenizerConfigFile = "tokenizer_config.json"
)

type tokenizerConfig struct {
	DoLowerCase *bool `json:"do_lower_case"`
}

// loadModel reads the vocabulary, tokenizer settings and weights from dir.
func loadModel(dir string, maxLength int) (*nn.BERT, tokenizer.Tokenizer, error) {
	vocab, err := tokenizer.LoadVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, nil, err
	}

	var opts []tokenizer.WordPieceOption
	data, err := os.ReadFile(filepath.Join(dir, TokenizerConfigFile))
	switch {
	case err == nil:
		var tc tokenizerConfig
		if err := json.Unmarshal(data, &tc); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", TokenizerConfigFile, err)
		}
		if tc.DoLowerCase != nil && !*tc.DoLowerCase {
			opts = append(opts, tokenizer.WithCasePreserved())
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, nil, fmt.Errorf("read %s: %w", TokenizerConfigFile, err)
	}

	tok, err := tokenizer.NewWordPiece(vocab, maxLength, opts...)
	if err != nil {
		return nil, nil, err
	}

	model, err := nn.LoadBERT(dir)
	if err != nil {
		return nil, nil, err
	}
	if vocab.Size() > model.Config().VocabSize {
		return nil, nil, fmt.Errorf("vocabulary has %d tokens but model embeds %d", vocab.Size(), model.Config().VocabSize)
	}
	return model, tok, nil
}
