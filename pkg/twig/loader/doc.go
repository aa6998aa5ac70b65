// Package loader locates Twig templates.
//
// Two contracts are defined. Capability is the narrow contract the reference
// visitor needs: can a name be loaded, and what does it resolve to. Loader
// adds GetSource for the rendering environment.
//
// Implementations:
//   - FilesystemLoader: search paths per namespace ("@admin/form.twig"),
//     relative names ("./x.twig") resolved against the requesting template
//   - ArrayLoader: in-memory templates, resolve returns the name itself
//   - OverrideLoader: an ArrayLoader whose sources report their own name as
//     their resolved path, used to serve an entry's in-memory source under
//     its on-disk path
//   - ChainLoader: tries loaders in order
package loader
