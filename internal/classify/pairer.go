package classify

import (
	"log/slog"

	"github.com/nao1215/papergrab/internal/model"
)

// Pairer groups classified links into bundles keyed by paper code.
type Pairer struct {
	classifier *Classifier
	logger     *slog.Logger
}

// PairerOption configures a Pairer.
type PairerOption func(*Pairer)

// WithLogger sets the logger used for dropped and synthetic-code links.
func WithLogger(logger *slog.Logger) PairerOption {
	return func(p *Pairer) {
		p.logger = logger
	}
}

// NewPairer creates a Pairer that classifies with c.
func NewPairer(c *Classifier, opts ...PairerOption) *Pairer {
	p := &Pairer{
		classifier: c,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pair classifies links in harvest order and folds them into bundles.
//
// Bundles come back in the order their code was first seen and documents
// keep harvest order inside each bundle. Links of unknown kind are dropped;
// their titles are returned as ambiguous. root and series name the first two
// levels of each bundle's folder.
func (p *Pairer) Pair(root, series string, links []model.RawLink) (bundles []model.PaperBundle, ambiguous []string) {
	index := make(map[model.PaperCode]int)

	for _, link := range links {
		rec := p.classifier.Classify(link)
		if rec.Kind == model.KindUnknown {
			p.logger.Info("link dropped",
				"error", model.ErrClassificationAmbiguous,
				"title", rec.Title,
				"href", rec.Href)
			ambiguous = append(ambiguous, rec.Title)
			continue
		}
		if rec.Synthetic {
			p.logger.Debug("no paper code in title, using synthetic code", "title", rec.Title, "code", rec.Code.String())
		}

		i, ok := index[rec.Code]
		if !ok {
			i = len(bundles)
			index[rec.Code] = i
			bundles = append(bundles, model.PaperBundle{
				Code:       rec.Code,
				FolderName: FolderName(root, series, rec.Code),
			})
		}
		bundles[i].Add(rec.Kind, rec.Ref())
	}

	p.logger.Debug("paired links", "links", len(links), "bundles", len(bundles), "ambiguous", len(ambiguous))
	return bundles, ambiguous
}
