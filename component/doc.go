/*
Package component extracts the 26-connected components of a 3d boolean
region mask.

The labeler is a true single-pass raster algorithm: voxels are scanned in
Z-major order, each foreground voxel examines only its already-visited
backward neighborhood, and label equivalences discovered along the way are
recorded in a disjoint-set arena and fused after the scan instead of
re-flooding the volume.  A second pass resolves the provisional labels and
splits the volume into one mask per component.

Label planes normally live in memory; when a volume's planes would exceed
the configured budget they are spilled to a scratch BadgerDB instead of
failing the extraction.
*/
package component
