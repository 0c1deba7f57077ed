// Package engine rewrites a lifted module so that host values cross the
// module boundary as externref while guest code keeps handling them as
// i32 slots.
//
// The pipeline installs a slot table runtime (alloc, free, get), replaces
// catalogue imports from the primary namespace with adapters, substitutes
// exports and imports declared in the bindgen custom section with
// wrappers carrying their declared signatures, and finally sweeps
// whatever became unreachable.
package engine
