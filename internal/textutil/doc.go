// Package textutil compares quiz topics.
//
// Topics are tokenized after Unicode case folding and turned into
// term-frequency fingerprints. Weighting terms by inverse document frequency
// across the ledger keeps words every topic shares ("history", "facts") from
// dominating the cosine similarity used to flag near-duplicate topics.
package textutil
