// Package pool
// Author: momentics <momentics@gmail.com>
//
// Pixel storage pooling for hioload-decode.
// Decoded raw images are large and short-lived; the slab pool keeps
// recently released pixel slices per power-of-two size class and hands them
// back out zeroed, bounding the number of retained slices per class.
package pool
