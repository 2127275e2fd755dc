package ejbca

import (
	"encoding/xml"
	"fmt"
	"sort"
)

// Minimal WSDL structure needed to enumerate operation names. Only the
// portType (and, as a fallback, binding) operation lists are read; the
// message and type definitions are left to the SOAP layer.
type wsdlDefinitions struct {
	XMLName   xml.Name       `xml:"definitions"`
	PortTypes []wsdlPortType `xml:"portType"`
	Bindings  []wsdlBinding  `xml:"binding"`
}

type wsdlPortType struct {
	Name       string          `xml:"name,attr"`
	Operations []wsdlOperation `xml:"operation"`
}

type wsdlBinding struct {
	Name       string          `xml:"name,attr"`
	Operations []wsdlOperation `xml:"operation"`
}

type wsdlOperation struct {
	Name string `xml:"name,attr"`
}

// parseCatalog extracts the set of operation names from a service
// description document.
func parseCatalog(doc []byte) (map[string]struct{}, error) {
	var defs wsdlDefinitions
	if err := xml.Unmarshal(doc, &defs); err != nil {
		return nil, fmt.Errorf("parsing service description: %w", err)
	}

	catalog := make(map[string]struct{})
	for _, pt := range defs.PortTypes {
		for _, op := range pt.Operations {
			if op.Name != "" {
				catalog[op.Name] = struct{}{}
			}
		}
	}

	if len(catalog) == 0 {
		for _, b := range defs.Bindings {
			for _, op := range b.Operations {
				if op.Name != "" {
					catalog[op.Name] = struct{}{}
				}
			}
		}
	}

	if len(catalog) == 0 {
		return nil, fmt.Errorf("service description contains no operations")
	}

	return catalog, nil
}

// minimalCatalog returns the hardcoded fallback catalog used when the
// service description cannot be parsed.
func minimalCatalog() map[string]struct{} {
	catalog := make(map[string]struct{}, len(minimalOperations))
	for _, op := range minimalOperations {
		catalog[op] = struct{}{}
	}
	return catalog
}

func catalogNames(catalog map[string]struct{}) []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
