// Package viz draws worlds and run data in the terminal.
//
//   - [Canvas]: braille pixel canvas, 2x4 dots per cell
//   - [Camera] and [DrawWorld]: world space to canvas projection of bodies
//   - [Plot], [RunsTable], [ProfileTable], [HitsTable]: charts and tables
//   - [Theme]: color schemes used by the live view
package viz
