package textutil

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// DefaultDuplicateThreshold is the similarity at which two topics are
// reported as likely duplicates.
const DefaultDuplicateThreshold = 0.8

// Match is an existing topic similar to a candidate.
type Match struct {
	Index      int
	Topic      string
	Similarity float64
}

// FindSimilar returns existing topics whose TF-IDF similarity to candidate
// reaches threshold, most similar first. Topics equal after case folding
// always match with similarity 1.
func FindSimilar(candidate string, existing []string, threshold float64) []Match {
	corpus := NewCorpus()
	prints := make([]*Fingerprint, len(existing))
	for idx, topic := range existing {
		prints[idx] = NewFingerprint(topic)
		corpus.Add(prints[idx])
	}
	target := NewFingerprint(candidate)
	corpus.Add(target)
	idf := corpus.IDF()
	target = target.WithIDF(idf)

	key := NormalizeTopic(candidate)
	var matches []Match
	for idx, topic := range existing {
		score := CosineSimilarity(target, prints[idx].WithIDF(idf))
		if key != "" && NormalizeTopic(topic) == key {
			score = 1
		}
		if score >= threshold {
			matches = append(matches, Match{Index: idx, Topic: topic, Similarity: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}

// NormalizeTopic case-folds a topic and collapses whitespace.
func NormalizeTopic(topic string) string {
	return strings.Join(strings.Fields(folder.String(topic)), " ")
}

var titleCaser = cases.Title(language.English)

// StatusLabel renders a SNAKE_CASE status as words: APPROVED_TOPIC becomes
// "Approved Topic".
func StatusLabel(status string) string {
	words := strings.ReplaceAll(strings.ToLower(status), "_", " ")
	return titleCaser.String(words)
}
