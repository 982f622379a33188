// Package analysis post-processes simulation results.
//
//   - [PowerSpectrum] and [DominantFrequency]: spectral content of a series
//   - [Bands]: low/mid/high energy split of a spectrum
//   - [Divergence]: finite-time separation rate of two perturbed worlds
//   - [NewPhasePortrait]: 2D trajectory of two sampled quantities
//
// A swinging body shows a sharp spectral peak at its swing frequency:
//
//	xs, _ := storage.Column(states, 0, "x")
//	f := analysis.DominantFrequency(xs, dt)
package analysis
